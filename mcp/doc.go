// Package mcp connects external MCP (Model Context Protocol) tool servers
// to the tool registry. A Source wraps one remote server; its tools are
// registered locally and every invocation is proxied over the MCP
// connection. Remote tools are tagged with network egress capability by
// default, so they pass through the approval gate like any other dangerous
// tool.
//
// The package also exposes a local registry as an MCP server over stdio,
// so other MCP clients can discover and call the same tools.
package mcp
