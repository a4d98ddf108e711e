// Package server implements the MCP (Model Context Protocol) server for
// contour extraction and containment verification.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to the configured zap logger, never to stdout.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load an image and get its metadata
//   - mask_build: Threshold one channel into a binary mask
//   - contour_extract: Trace contours and their hierarchy
//   - region_select: Pick the leaf region above a minimum area
//   - region_verify_containment: Full pipeline, cached by content key
//   - region_overlay: Debug PNG of region and rectangle
//
// Every pipeline tool accepts channel, alpha_cutoff, gray_cutoff, min_area and
// approx; omitted values come from the server's configured defaults.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses with:
//   - code -32602 for malformed or out-of-range arguments
//   - code -32000 for tool failures, with the error string (naming the
//     pipeline step that failed) as data
//   - code -32601 for unknown methods
//
// # Usage
//
//	srv := server.New(server.WithLogger(logger), server.WithDefaults(opts))
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
