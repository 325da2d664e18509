// Package calendar_tools provides MCP (Model Context Protocol) tools for the
// calendar of a signed-in account.
//
// calendar_list_events and calendar_layout are always available.
// calendar_create_event is only registered when writes are enabled.
// Every tool acts for the current account unless an "account" argument
// names another signed-in account.
package calendar_tools
