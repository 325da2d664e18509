// Package cmd implements the command-line interface for calview.
//
// This package provides the following commands:
//   - serve: Start the HTTP view service or the stdio MCP server
//   - login: Sign in from the terminal with the PKCE authorization code flow
//   - logout: Remove the stored token of an account
//   - accounts: List the signed-in accounts
//   - layout: Lay out events read from a YAML or JSON file
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Settings are read from an optional YAML file (--config), then from
// environment variables (a .env file in the working directory is loaded
// first), then from flags.
package cmd
