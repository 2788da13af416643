// Package mcp serves the capability table over the Model Context Protocol.
//
// Every capability becomes one MCP tool whose input schema is derived from the
// capability's declared parameters:
//   - query_repository: search the index, returns formatted result blocks
//   - index_repository: rebuild the index, returns build statistics as JSON
//   - index_status: report the active build as JSON
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr so stdout carries protocol messages only.
//
// # Error Codes
//
//	-32602  invalid parameters (missing query, k < 1, unknown parameter)
//	-32603  internal error
//	-32001  repository not indexed yet
//	-32002  an index build is already running
//	-32003  the similarity query failed
package mcp
