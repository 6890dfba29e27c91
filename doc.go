// Package entrez implements a client SDK for the Entrez MCP server, exposing
// NCBI E-utilities, data staging, and external chemistry/literature services
// as remote tools over the Model Context Protocol's streamable HTTP transport.
//
// The client speaks JSON-RPC 2.0 over HTTP POST and accepts responses either
// as plain JSON documents or as Server-Sent-Events streams, depending on what
// the server chooses. Session establishment, response decoding, and result
// normalization are handled transparently; callers work with tool names,
// parameter maps, and flat result objects.
package entrez
