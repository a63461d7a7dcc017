// Package fileio implements [mcp.FileSystemPort] against the local
// filesystem, sandboxed through [sandbox.Sandbox].
//
// Grounded directly on the teacher's internal/mcp/tools/fileio/fileio.go:
// the same read/write tool shape, generalized from its single fixed
// `baseDir` + `safePath` traversal check to this spec's [sandbox.Sandbox],
// offset/length partial reads, three encodings, and explicit truncation
// reporting (spec §6, §9 Open Question 2).
package fileio

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"

	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
	"github.com/cursorcli-mcp/workspace-server/internal/sandbox"
)

// Port implements [mcp.FileSystemPort].
type Port struct {
	sb *sandbox.Sandbox
}

// New constructs a Port that validates every path against sb before
// touching the filesystem.
func New(sb *sandbox.Sandbox) *Port {
	return &Port{sb: sb}
}

// resolve validates path and returns its physical, on-disk location.
func (p *Port) resolve(path string) (string, error) {
	result, err := p.sb.Validate(path)
	if err != nil {
		return "", err
	}
	return result.Resolved, nil
}

// ReadFile implements [mcp.FileSystemPort]. maxBytes is the configured
// `fileOperations.maxFileSize` cap; it bounds what can ever be served
// regardless of the requested length, per spec §6.
func (p *Port) ReadFile(ctx context.Context, req mcp.ReadFileRequest, maxBytes int64) (mcp.ReadFileResult, error) {
	select {
	case <-ctx.Done():
		return mcp.ReadFileResult{}, ctx.Err()
	default:
	}

	resolved, err := p.resolve(req.Path)
	if err != nil {
		return mcp.ReadFileResult{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return mcp.ReadFileResult{}, mcperr.Wrap(mcperr.NotFound, "fileio: read_file: stat failed", err).
			WithContext("path", req.Path)
	}
	if info.IsDir() {
		return mcp.ReadFileResult{}, mcperr.Newf(mcperr.InvalidArguments, "fileio: read_file: %q is a directory", req.Path)
	}

	size := info.Size()
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > size {
		offset = size
	}

	length := req.Length
	if length <= 0 {
		length = size - offset
	}

	// served = [offset, min(offset+length, size, offset+maxBytes))
	end := offset + length
	if end > size {
		end = size
	}
	if maxBytes > 0 && end > offset+maxBytes {
		end = offset + maxBytes
	}
	truncated := end < size

	f, err := os.Open(resolved)
	if err != nil {
		return mcp.ReadFileResult{}, mcperr.Wrap(mcperr.PermissionDenied, "fileio: read_file: open failed", err).
			WithContext("path", req.Path)
	}
	defer f.Close()

	buf := make([]byte, end-offset)
	if len(buf) > 0 {
		if _, err := f.ReadAt(buf, offset); err != nil {
			return mcp.ReadFileResult{}, mcperr.Wrap(mcperr.InternalError, "fileio: read_file: read failed", err).
				WithContext("path", req.Path)
		}
	}

	content, err := encodeForTransport(buf, req.Encoding)
	if err != nil {
		return mcp.ReadFileResult{}, err
	}

	return mcp.ReadFileResult{Content: content, Size: size, Truncated: truncated}, nil
}

// WriteFile implements [mcp.FileSystemPort], creating missing parent
// directories, as the teacher's write_file handler does.
func (p *Port) WriteFile(ctx context.Context, req mcp.WriteFileRequest) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	resolved, err := p.resolve(req.Path)
	if err != nil {
		return 0, err
	}

	data, err := decodeFromTransport(req.Content, req.Encoding)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return 0, mcperr.Wrap(mcperr.PermissionDenied, "fileio: write_file: create directories failed", err).
			WithContext("path", req.Path)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if req.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return 0, mcperr.Wrap(mcperr.PermissionDenied, "fileio: write_file: open failed", err).
			WithContext("path", req.Path)
	}
	defer f.Close()

	n, err := f.Write(data)
	if err != nil {
		return 0, mcperr.Wrap(mcperr.InternalError, "fileio: write_file: write failed", err).
			WithContext("path", req.Path)
	}
	return int64(n), nil
}

// ListDirectory implements [mcp.FileSystemPort].
func (p *Port) ListDirectory(ctx context.Context, path string) ([]mcp.DirEntry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	resolved, err := p.resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.NotFound, "fileio: list_directory: read failed", err).
			WithContext("path", path)
	}

	out := make([]mcp.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, mcp.DirEntry{
			Name:    e.Name(),
			IsDir:   e.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeForTransport renders raw bytes according to encoding, per spec §6:
// utf-8/utf-16le are returned as text, binary is base64.
func encodeForTransport(raw []byte, enc mcp.Encoding) (string, error) {
	switch enc {
	case mcp.EncodingBinary:
		return base64.StdEncoding.EncodeToString(raw), nil
	case mcp.EncodingUTF16LE:
		text, err := utf16le.NewDecoder().Bytes(raw)
		if err != nil {
			return "", mcperr.Wrap(mcperr.InvalidArguments, "fileio: invalid utf-16le content", err)
		}
		return string(text), nil
	case mcp.EncodingUTF8, "":
		return string(raw), nil
	default:
		return "", mcperr.Newf(mcperr.InvalidArguments, "fileio: unsupported encoding %q", enc)
	}
}

// decodeFromTransport is the write-side inverse of encodeForTransport.
func decodeFromTransport(content string, enc mcp.Encoding) ([]byte, error) {
	switch enc {
	case mcp.EncodingBinary:
		raw, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, mcperr.Wrap(mcperr.InvalidArguments, "fileio: invalid base64 content", err)
		}
		return raw, nil
	case mcp.EncodingUTF16LE:
		raw, err := utf16le.NewEncoder().Bytes([]byte(content))
		if err != nil {
			return nil, mcperr.Wrap(mcperr.InvalidArguments, "fileio: invalid utf-16le content", err)
		}
		return raw, nil
	case mcp.EncodingUTF8, "":
		return []byte(content), nil
	default:
		return nil, mcperr.Newf(mcperr.InvalidArguments, "fileio: unsupported encoding %q", enc)
	}
}
