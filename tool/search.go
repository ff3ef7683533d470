package tool

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	ai "github.com/adolfousier/opencrab"
)

// SearchToolOption configures the search tool.
type SearchToolOption func(*searchToolConfig)

type searchToolConfig struct {
	basePath        string
	maxResults      int
	excludePatterns []string
}

// WithSearchPath sets the base path for searches.
func WithSearchPath(path string) SearchToolOption {
	return func(c *searchToolConfig) {
		c.basePath = path
	}
}

// WithMaxResults limits the number of search results.
// Default is 100.
func WithMaxResults(n int) SearchToolOption {
	return func(c *searchToolConfig) {
		c.maxResults = n
	}
}

// WithExcludePatterns sets glob patterns for file names to skip.
func WithExcludePatterns(patterns ...string) SearchToolOption {
	return func(c *searchToolConfig) {
		c.excludePatterns = patterns
	}
}

func applySearchOpts(opts []SearchToolOption) *searchToolConfig {
	cfg := &searchToolConfig{
		maxResults: 100,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.basePath == "" {
		cfg.basePath = "."
	}
	return cfg
}

func (c *searchToolConfig) excluded(path string) bool {
	for _, pattern := range c.excludePatterns {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}

type searchFilesArgs struct {
	Pattern string `json:"pattern" desc:"Regular expression to search for" required:"true"`
	Glob    string `json:"glob" desc:"Only search files whose name matches this glob"`
}

// SearchFilesTool creates a read-only tool that searches file contents for
// a regular expression, returning path:line matches.
func SearchFilesTool(opts ...SearchToolOption) Registration {
	cfg := applySearchOpts(opts)

	return Func("search_files", "Search file contents for a regular expression",
		func(ctx context.Context, args searchFilesArgs) (string, error) {
			re, err := regexp.Compile(args.Pattern)
			if err != nil {
				return "", fmt.Errorf("invalid pattern: %w", err)
			}

			var results []string
			err = filepath.WalkDir(cfg.basePath, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil // skip unreadable entries
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if d.IsDir() {
					if cfg.excluded(path) {
						return filepath.SkipDir
					}
					return nil
				}
				if cfg.excluded(path) {
					return nil
				}
				if args.Glob != "" {
					if matched, _ := filepath.Match(args.Glob, d.Name()); !matched {
						return nil
					}
				}

				matches, err := searchFile(path, re, cfg.maxResults-len(results))
				if err != nil {
					return nil // skip unreadable files
				}
				results = append(results, matches...)
				if len(results) >= cfg.maxResults {
					return filepath.SkipAll
				}
				return nil
			})
			if err != nil {
				return "", err
			}

			if len(results) == 0 {
				return "no matches", nil
			}
			return strings.Join(results, "\n"), nil
		},
		ai.CapabilityReadOnly,
	)
}

func searchFile(path string, re *regexp.Regexp, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if re.MatchString(line) {
			matches = append(matches, fmt.Sprintf("%s:%d: %s", path, lineNum, line))
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, scanner.Err()
}
