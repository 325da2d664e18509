// Package common provides helpers shared by the MCP tool packages:
// account and backend resolution from tool arguments, error results and
// the instrumentation wrapper applied to every tool handler.
package common
