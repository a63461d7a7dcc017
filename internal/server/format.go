package server

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
)

// The built-in tool handlers render their result as a single text content
// block rather than a structured resource, matching the plain-text tool
// outputs the teacher's built-in MCP tools return.

func formatBytesWritten(n int64) string {
	return fmt.Sprintf("wrote %d bytes", n)
}

func formatProjectInfo(info mcp.ProjectInfo) string {
	vcs := info.VCS
	if vcs == "" {
		vcs = "none"
	}
	return fmt.Sprintf("root=%s name=%s vcs=%s fileCount=%d", info.Root, info.Name, vcs, info.FileCount)
}

func formatTree(node mcp.TreeNode, depth int) string {
	var b strings.Builder
	writeTree(&b, node, depth)
	return strings.TrimRight(b.String(), "\n")
}

func writeTree(b *strings.Builder, node mcp.TreeNode, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(node.Name)
	if node.IsDir {
		b.WriteString("/")
	}
	b.WriteString("\n")
	for _, child := range node.Children {
		writeTree(b, child, depth+1)
	}
}

func formatModelDescriptor(d mcp.ModelDescriptor) string {
	return fmt.Sprintf("name=%s provider=%s costPerToken=%s", d.Name, d.Provider, strconv.FormatFloat(d.CostPerToken, 'g', -1, 64))
}

func formatUsageStats(s mcp.UsageStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sessions=%d inputTokens=%d outputTokens=%d estimatedCost=%s averageDuration=%s\n",
		s.SessionCount, s.TotalInputToks, s.TotalOutputToks,
		strconv.FormatFloat(s.EstimatedCost, 'g', -1, 64), s.AverageDuration)

	names := make([]string, 0, len(s.ByModel))
	for name := range s.ByModel {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		u := s.ByModel[name]
		fmt.Fprintf(&b, "  %s: calls=%d inputTokens=%d outputTokens=%d estimatedCost=%s averageDuration=%s\n",
			name, u.Calls, u.InputToks, u.OutputToks, strconv.FormatFloat(u.EstimatedCost, 'g', -1, 64), u.AverageDuration)
	}
	return strings.TrimRight(b.String(), "\n")
}
