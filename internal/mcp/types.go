// Package mcp holds the wire vocabulary and external-collaborator port
// interfaces shared across the workspace server's core components:
// content blocks and tool-call results (spec §6), and the FileSystemPort /
// ProjectPort / EditorPort / ModelPort contracts the core depends on but
// does not implement (spec §1 "Out of scope").
package mcp

import mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

// Implementation identifies a protocol participant, reused from the MCP
// Go SDK for wire compatibility with the {name, version} shape spec §3
// mandates for both Server Info and Client Info.
type Implementation = mcpsdk.Implementation

// ContentKind is the closed set of content block variants a tool result
// may carry, per spec §6.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentResource ContentKind = "resource"
)

// ResourceContent is the embedded-resource payload of a "resource" content
// block.
type ResourceContent struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Content is one block of a tool call's result content array. Exactly one
// of Text, Data/MIMEType, or Resource is populated, selected by Type.
type Content struct {
	Type     ContentKind      `json:"type"`
	Text     string           `json:"text,omitempty"`
	Data     string           `json:"data,omitempty"`
	MIMEType string           `json:"mimeType,omitempty"`
	Resource *ResourceContent `json:"resource,omitempty"`
}

// TextContent builds a "text" content block.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// ImageContent builds an "image" content block. data is already
// base64-encoded, per spec §6.
func ImageContent(base64Data, mimeType string) Content {
	return Content{Type: ContentImage, Data: base64Data, MIMEType: mimeType}
}

// ResourceBlock builds a "resource" content block.
func ResourceBlock(uri, mimeType, text string) Content {
	return Content{Type: ContentResource, Resource: &ResourceContent{URI: uri, MIMEType: mimeType, Text: text}}
}

// CallToolResult is the reply payload of a successful or application-level
// failed `tools/call`, per spec §6.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ErrorResult is a convenience constructor for an application-level failure
// reported as tool content rather than a JSON-RPC error (used by handlers
// that want to tell the model what went wrong without aborting the call).
func ErrorResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{TextContent(text)}, IsError: true}
}
