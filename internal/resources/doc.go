// Package resources provides MCP resources for exposing account and layout
// data. Resources are read-only data sources that MCP clients can fetch
// without calling a tool, such as the signed-in accounts or the settings used
// to position events.
package resources
