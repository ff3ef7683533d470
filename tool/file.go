package tool

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ai "github.com/adolfousier/opencrab"
)

// FileToolOption configures the file tools.
type FileToolOption func(*fileToolConfig)

type fileToolConfig struct {
	basePath          string
	maxFileSize       int64
	allowedExtensions []string
}

// WithBasePath restricts file operations to paths under the given directory.
// Paths that resolve outside it are rejected.
func WithBasePath(path string) FileToolOption {
	return func(c *fileToolConfig) {
		c.basePath = path
	}
}

// WithMaxFileSize sets the maximum file size for read/write operations.
// Default is 10MB.
func WithMaxFileSize(bytes int64) FileToolOption {
	return func(c *fileToolConfig) {
		c.maxFileSize = bytes
	}
}

// WithAllowedExtensions restricts file operations to the given extensions.
func WithAllowedExtensions(exts ...string) FileToolOption {
	return func(c *fileToolConfig) {
		c.allowedExtensions = exts
	}
}

func applyFileOpts(opts []FileToolOption) *fileToolConfig {
	cfg := &fileToolConfig{
		maxFileSize: 10 * 1024 * 1024, // 10MB default
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *fileToolConfig) resolvePath(path string) (string, error) {
	path = filepath.Clean(path)

	if c.basePath != "" {
		basePath := filepath.Clean(c.basePath)
		fullPath := filepath.Join(basePath, path)

		rel, err := filepath.Rel(basePath, fullPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("path %q is outside base path %q", path, basePath)
		}
		path = fullPath
	}

	return path, nil
}

func (c *fileToolConfig) checkExtension(path string) error {
	if len(c.allowedExtensions) == 0 {
		return nil
	}

	ext := filepath.Ext(path)
	for _, allowed := range c.allowedExtensions {
		if ext == allowed || ext == "."+allowed {
			return nil
		}
	}
	return fmt.Errorf("extension %q not allowed", ext)
}

type readFileArgs struct {
	Path     string `json:"path" desc:"Path to the file to read" required:"true"`
	Encoding string `json:"encoding" desc:"Output encoding" enum:"utf-8,base64"`
}

// ReadFileTool creates a read-only tool that returns a file's contents.
func ReadFileTool(opts ...FileToolOption) Registration {
	cfg := applyFileOpts(opts)

	return Func("read_file", "Read the contents of a file",
		func(ctx context.Context, args readFileArgs) (string, error) {
			path, err := cfg.resolvePath(args.Path)
			if err != nil {
				return "", err
			}
			if err := cfg.checkExtension(path); err != nil {
				return "", err
			}

			info, err := os.Stat(path)
			if err != nil {
				return "", err
			}
			if info.Size() > cfg.maxFileSize {
				return "", fmt.Errorf("file size %d exceeds maximum %d", info.Size(), cfg.maxFileSize)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}

			if args.Encoding == "base64" {
				return base64.StdEncoding.EncodeToString(data), nil
			}
			return string(data), nil
		},
		ai.CapabilityReadOnly,
	)
}

type writeFileArgs struct {
	Path    string `json:"path" desc:"Path to the file to write" required:"true"`
	Content string `json:"content" desc:"Content to write" required:"true"`
	Append  *bool  `json:"append" desc:"Append instead of overwrite"`
}

// WriteFileTool creates a tool that writes content to a file.
// It carries the file mutation capability and requires approval.
func WriteFileTool(opts ...FileToolOption) Registration {
	cfg := applyFileOpts(opts)

	return Func("write_file", "Write content to a file, creating it if needed",
		func(ctx context.Context, args writeFileArgs) (string, error) {
			path, err := cfg.resolvePath(args.Path)
			if err != nil {
				return "", err
			}
			if err := cfg.checkExtension(path); err != nil {
				return "", err
			}
			if int64(len(args.Content)) > cfg.maxFileSize {
				return "", fmt.Errorf("content size %d exceeds maximum %d", len(args.Content), cfg.maxFileSize)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", err
			}

			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if args.Append != nil && *args.Append {
				flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				return "", err
			}
			defer f.Close()

			n, err := f.WriteString(args.Content)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", n, args.Path), nil
		},
		ai.CapabilityFileMutation,
	)
}

type listDirArgs struct {
	Path string `json:"path" desc:"Directory to list" required:"true"`
}

// ListDirTool creates a read-only tool that lists a directory's entries.
func ListDirTool(opts ...FileToolOption) Registration {
	cfg := applyFileOpts(opts)

	return Func("list_dir", "List the entries of a directory",
		func(ctx context.Context, args listDirArgs) (string, error) {
			path, err := cfg.resolvePath(args.Path)
			if err != nil {
				return "", err
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return "", err
			}

			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		},
		ai.CapabilityReadOnly,
	)
}
