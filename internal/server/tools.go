package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/registry"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/editor"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/fileio"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/model"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/project"
)

// pathField is the recurring `path` string argument shared by most file
// and project tools.
func pathField(description string) registry.Field {
	return registry.Field{Name: "path", Type: "string", Description: description}
}

func registerBuiltinTools(reg *registry.Registry, fs *fileio.Port, proj *project.Port, ed *editor.Port, md *model.Port, maxFileSize int64) error {
	registrations := []struct {
		name        string
		description string
		fields      []registry.Field
		handler     registry.Handler
	}{
		{
			"read_file", "Read a file within the workspace, optionally by byte offset/length.",
			[]registry.Field{
				pathField("Workspace-relative or absolute path to read."),
				{Name: "offset", Type: "integer", Description: "Byte offset to start reading from.", Optional: true},
				{Name: "length", Type: "integer", Description: "Maximum number of bytes to read.", Optional: true},
				{Name: "encoding", Type: "string", Description: "Text encoding of the result.", Optional: true, Enum: []string{"utf-8", "utf-16le", "binary"}},
			},
			readFileHandler(fs, maxFileSize),
		},
		{
			"write_file", "Write or append to a file within the workspace.",
			[]registry.Field{
				pathField("Workspace-relative or absolute path to write."),
				{Name: "content", Type: "string", Description: "Content to write."},
				{Name: "encoding", Type: "string", Description: "Encoding of content.", Optional: true, Enum: []string{"utf-8", "utf-16le", "binary"}},
				{Name: "append", Type: "boolean", Description: "Append instead of overwrite.", Optional: true},
			},
			writeFileHandler(fs),
		},
		{
			"list_directory", "List the entries of a directory within the workspace.",
			[]registry.Field{pathField("Workspace-relative or absolute directory path.")},
			listDirectoryHandler(fs),
		},
		{
			"project_info", "Report the workspace root, name, detected VCS, and file count.",
			nil,
			projectInfoHandler(proj),
		},
		{
			"search_files", "Search the workspace for files matching a glob pattern.",
			[]registry.Field{
				{Name: "pattern", Type: "string", Description: "Glob pattern to match, relative to the workspace root."},
				{Name: "honorGitignore", Type: "boolean", Description: "Exclude paths matched by .gitignore.", Optional: true},
			},
			searchFilesHandler(proj),
		},
		{
			"workspace_tree", "Build a directory tree of the workspace, bounded by depth and exclude patterns.",
			[]registry.Field{
				{Name: "maxDepth", Type: "integer", Description: "Maximum recursion depth (0 means unbounded).", Optional: true},
				{Name: "exclude", Type: "array", Description: "Glob patterns to exclude.", Optional: true, Items: &registry.Field{Type: "string"}},
			},
			workspaceTreeHandler(proj),
		},
		{
			"editor_open", "Open a document in the editor, making it the active document.",
			[]registry.Field{pathField("Path of the document to open.")},
			editorOpenHandler(ed),
		},
		{
			"editor_insert", "Insert text into an open document at a 1-based line/column position.",
			[]registry.Field{
				pathField("Path of the open document."),
				{Name: "line", Type: "integer", Description: "1-based line number."},
				{Name: "column", Type: "integer", Description: "1-based column number."},
				{Name: "text", Type: "string", Description: "Text to insert."},
			},
			editorInsertHandler(ed),
		},
		{
			"editor_replace", "Replace a span of an open document, delimited by 1-based line/column positions.",
			[]registry.Field{
				pathField("Path of the open document."),
				{Name: "fromLine", Type: "integer", Description: "1-based start line."},
				{Name: "fromColumn", Type: "integer", Description: "1-based start column."},
				{Name: "toLine", Type: "integer", Description: "1-based end line."},
				{Name: "toColumn", Type: "integer", Description: "1-based end column."},
				{Name: "text", Type: "string", Description: "Replacement text."},
			},
			editorReplaceHandler(ed),
		},
		{
			"model_info", "Report the model descriptor currently backing the client.",
			nil,
			modelInfoHandler(md),
		},
		{
			"record_usage", "Record one model invocation's token usage and duration.",
			[]registry.Field{
				{Name: "model", Type: "string", Description: "Model name the usage is attributed to."},
				{Name: "inputTokens", Type: "integer", Description: "Input tokens consumed.", Minimum: floatPtr(0)},
				{Name: "outputTokens", Type: "integer", Description: "Output tokens produced.", Minimum: floatPtr(0)},
				{Name: "durationMs", Type: "integer", Description: "Call duration in milliseconds.", Optional: true, Minimum: floatPtr(0)},
				{Name: "costPerToken", Type: "number", Description: "Per-token cost for this model, if not already known from a prior record_usage call or the model_info descriptor.", Optional: true, Minimum: floatPtr(0)},
			},
			recordUsageHandler(md),
		},
		{
			"usage_stats", "Report aggregated model usage for the life of the process.",
			nil,
			usageStatsHandler(md),
		},
	}

	for _, r := range registrations {
		if err := reg.Register(r.name, r.description, r.fields, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt64(args map[string]any, key string) int64 {
	v, _ := args[key].(float64)
	return int64(v)
}

func argInt(args map[string]any, key string) int {
	v, _ := args[key].(float64)
	return int(v)
}

func argFloat64(args map[string]any, key string) float64 {
	v, _ := args[key].(float64)
	return v
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func encodingArg(args map[string]any) mcp.Encoding {
	if enc := argString(args, "encoding"); enc != "" {
		return mcp.Encoding(enc)
	}
	return mcp.EncodingUTF8
}

func readFileHandler(fs *fileio.Port, maxFileSize int64) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		res, err := fs.ReadFile(ctx, mcp.ReadFileRequest{
			Path:     argString(args, "path"),
			Offset:   argInt64(args, "offset"),
			Length:   argInt64(args, "length"),
			Encoding: encodingArg(args),
		}, maxFileSize)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(res.Content)}}, nil
	}
}

func writeFileHandler(fs *fileio.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		n, err := fs.WriteFile(ctx, mcp.WriteFileRequest{
			Path:     argString(args, "path"),
			Content:  argString(args, "content"),
			Encoding: encodingArg(args),
			Append:   argBool(args, "append"),
		})
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(formatBytesWritten(n))}}, nil
	}
}

func listDirectoryHandler(fs *fileio.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		entries, err := fs.ListDirectory(ctx, argString(args, "path"))
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: dirEntriesToContent(entries)}, nil
	}
}

func projectInfoHandler(proj *project.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		info, err := proj.Info(ctx)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(formatProjectInfo(info))}}, nil
	}
}

func searchFilesHandler(proj *project.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		matches, err := proj.Search(ctx, argString(args, "pattern"), argBool(args, "honorGitignore"))
		if err != nil {
			return nil, err
		}
		content := make([]mcp.Content, len(matches))
		for i, m := range matches {
			content[i] = mcp.TextContent(m)
		}
		return &mcp.CallToolResult{Content: content}, nil
	}
}

func workspaceTreeHandler(proj *project.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		tree, err := proj.Tree(ctx, argInt(args, "maxDepth"), argStringSlice(args, "exclude"))
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(formatTree(tree, 0))}}, nil
	}
}

func editorOpenHandler(ed *editor.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		if err := ed.Open(ctx, argString(args, "path")); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("opened")}}, nil
	}
}

func editorInsertHandler(ed *editor.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		pos := mcp.CursorPosition{Line: argInt(args, "line"), Column: argInt(args, "column")}
		if err := ed.Insert(ctx, argString(args, "path"), pos, argString(args, "text")); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("inserted")}}, nil
	}
}

func editorReplaceHandler(ed *editor.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		from := mcp.CursorPosition{Line: argInt(args, "fromLine"), Column: argInt(args, "fromColumn")}
		to := mcp.CursorPosition{Line: argInt(args, "toLine"), Column: argInt(args, "toColumn")}
		if err := ed.Replace(ctx, argString(args, "path"), from, to, argString(args, "text")); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("replaced")}}, nil
	}
}

func modelInfoHandler(md *model.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		desc, err := md.Current(ctx)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(formatModelDescriptor(desc))}}, nil
	}
}

func recordUsageHandler(md *model.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		rec := mcp.UsageRecord{
			ID:           uuid.NewString(),
			Model:        argString(args, "model"),
			InputToks:    argInt64(args, "inputTokens"),
			OutputToks:   argInt64(args, "outputTokens"),
			Duration:     time.Duration(argInt64(args, "durationMs")) * time.Millisecond,
			CostPerToken: argFloat64(args, "costPerToken"),
		}
		if err := md.RecordUsage(ctx, rec); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("recorded " + rec.ID)}}, nil
	}
}

func usageStatsHandler(md *model.Port) registry.Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		stats, err := md.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(formatUsageStats(stats))}}, nil
	}
}

func dirEntriesToContent(entries []mcp.DirEntry) []mcp.Content {
	content := make([]mcp.Content, len(entries))
	for i, e := range entries {
		kind := "file"
		if e.IsDir {
			kind = "dir"
		}
		content[i] = mcp.TextContent(kind + "\t" + e.Name)
	}
	return content
}

