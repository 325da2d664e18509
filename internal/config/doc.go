// Package config loads the calview configuration.
//
// Settings come from an optional YAML file, then environment variables,
// then command line flags, each overriding the previous source.
//
//	provider:
//	  kind: microsoft
//	  client_id: 00000000-0000-0000-0000-000000000000
//	  tenant: common
//	  redirect_url: http://localhost:8080/auth/callback
//	backend:
//	  kind: google
//	layout:
//	  pixels_per_hour: 64
//	  min_height: 40
//	  time_zone: Europe/Berlin
package config
