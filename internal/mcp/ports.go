package mcp

import (
	"context"
	"time"
)

// Encoding is the closed set of text encodings [FileSystemPort.ReadFile]
// supports, per spec §6.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingBinary  Encoding = "binary"
)

// ReadFileRequest is the validated argument shape for a partial, bounded
// file read.
type ReadFileRequest struct {
	Path     string
	Offset   int64
	Length   int64 // 0 means "to end of file, subject to the cap"
	Encoding Encoding
}

// ReadFileResult is the outcome of [FileSystemPort.ReadFile]. Content is
// UTF-8 text for EncodingUTF8/UTF16LE, and base64 for EncodingBinary, per
// spec §6 and §9 Open Question 2.
type ReadFileResult struct {
	Content   string
	Size      int64
	Truncated bool
}

// WriteFileRequest is the validated argument shape for a file write.
type WriteFileRequest struct {
	Path     string
	Content  string
	Encoding Encoding
	Append   bool
}

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name    string    `json:"name"`
	IsDir   bool      `json:"isDir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// FileSystemPort is the external collaborator the file-operation tools
// (read_file, write_file, list_directory) are implemented against. Every
// path argument has already passed sandbox validation before a handler
// calls into this port.
type FileSystemPort interface {
	ReadFile(ctx context.Context, req ReadFileRequest, maxBytes int64) (ReadFileResult, error)
	WriteFile(ctx context.Context, req WriteFileRequest) (bytesWritten int64, err error)
	ListDirectory(ctx context.Context, path string) ([]DirEntry, error)
}

// ProjectInfo describes the workspace the server is rooted in.
type ProjectInfo struct {
	Root      string `json:"root"`
	Name      string `json:"name"`
	VCS       string `json:"vcs,omitempty"`
	FileCount int    `json:"fileCount"`
}

// TreeNode is one node of a workspace directory tree.
type TreeNode struct {
	Name     string     `json:"name"`
	IsDir    bool       `json:"isDir"`
	Children []TreeNode `json:"children,omitempty"`
}

// ProjectPort is the external collaborator behind project_info,
// search_files, and workspace_tree.
type ProjectPort interface {
	Info(ctx context.Context) (ProjectInfo, error)
	Search(ctx context.Context, pattern string, honorGitignore bool) ([]string, error)
	Tree(ctx context.Context, maxDepth int, exclude []string) (TreeNode, error)
}

// CursorPosition is a 1-based line/column location in an open document,
// per spec §6.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// EditorPort is the external collaborator behind the editor_* tools. The
// only shipped implementation is a mock façade (spec §1: the real editor
// is an out-of-core collaborator).
type EditorPort interface {
	IsReady(ctx context.Context) (bool, error)
	Open(ctx context.Context, path string) error
	Active(ctx context.Context) (path string, pos CursorPosition, err error)
	Insert(ctx context.Context, path string, pos CursorPosition, text string) error
	Replace(ctx context.Context, path string, from, to CursorPosition, text string) error
}

// ModelDescriptor identifies the model currently backing the client.
type ModelDescriptor struct {
	Name         string  `json:"name"`
	Provider     string  `json:"provider"`
	CostPerToken float64 `json:"costPerToken"`
}

// UsageRecord is one recorded model invocation. CostPerToken is optional:
// when nonzero it both prices this record and becomes the named model's
// remembered rate for future records that omit it; when zero the model's
// last-known rate is used (0 if the model has never supplied one).
type UsageRecord struct {
	ID           string        `json:"id"`
	Model        string        `json:"model"`
	InputToks    int64         `json:"inputTokens"`
	OutputToks   int64         `json:"outputTokens"`
	Duration     time.Duration `json:"durationMs"`
	CostPerToken float64       `json:"costPerToken,omitempty"`
}

// UsageStats is the aggregated view over all recorded usage in the
// process lifetime (spec §6 "ModelPort").
type UsageStats struct {
	SessionCount   int64                   `json:"sessionCount"`
	TotalInputToks int64                   `json:"totalInputTokens"`
	TotalOutputToks int64                  `json:"totalOutputTokens"`
	EstimatedCost  float64                 `json:"estimatedCost"`
	AverageDuration time.Duration          `json:"averageDurationMs"`
	ByModel        map[string]ModelUsage   `json:"byModel"`
}

// ModelUsage is the per-model slice of [UsageStats].
type ModelUsage struct {
	Calls           int64         `json:"calls"`
	InputToks       int64         `json:"inputTokens"`
	OutputToks      int64         `json:"outputTokens"`
	EstimatedCost   float64       `json:"estimatedCost"`
	AverageDuration time.Duration `json:"averageDurationMs"`
}

// ModelPort is the external collaborator behind model_info, record_usage,
// and usage_stats.
type ModelPort interface {
	Current(ctx context.Context) (ModelDescriptor, error)
	RecordUsage(ctx context.Context, rec UsageRecord) error
	Stats(ctx context.Context) (UsageStats, error)
}
