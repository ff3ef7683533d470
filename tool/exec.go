package tool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	ai "github.com/adolfousier/opencrab"
)

// ExecToolOption configures the command execution tool.
type ExecToolOption func(*execToolConfig)

type execToolConfig struct {
	workDir       string
	timeout       time.Duration
	maxOutputSize int
	denied        []string
}

// WithWorkDir sets the working directory for executed commands.
func WithWorkDir(dir string) ExecToolOption {
	return func(c *execToolConfig) {
		c.workDir = dir
	}
}

// WithExecTimeout sets the maximum run time for a command.
// Default is 2 minutes.
func WithExecTimeout(d time.Duration) ExecToolOption {
	return func(c *execToolConfig) {
		c.timeout = d
	}
}

// WithMaxOutputSize sets the maximum captured output size in bytes.
// Default is 64KB; longer output is truncated.
func WithMaxOutputSize(n int) ExecToolOption {
	return func(c *execToolConfig) {
		c.maxOutputSize = n
	}
}

// WithDeniedCommands rejects commands whose first word matches any of the
// given names, regardless of approval.
func WithDeniedCommands(names ...string) ExecToolOption {
	return func(c *execToolConfig) {
		c.denied = names
	}
}

func applyExecOpts(opts []ExecToolOption) *execToolConfig {
	cfg := &execToolConfig{
		timeout:       2 * time.Minute,
		maxOutputSize: 64 * 1024,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

type runCommandArgs struct {
	Command string `json:"command" desc:"Shell command to run" required:"true"`
}

// RunCommandTool creates a tool that runs a shell command and returns its
// combined output. It carries the command execution capability and always
// requires approval.
func RunCommandTool(opts ...ExecToolOption) Registration {
	cfg := applyExecOpts(opts)

	return Func("run_command", "Run a shell command and return its output",
		func(ctx context.Context, args runCommandArgs) (string, error) {
			fields := strings.Fields(args.Command)
			if len(fields) == 0 {
				return "", fmt.Errorf("empty command")
			}
			for _, name := range cfg.denied {
				if fields[0] == name {
					return "", fmt.Errorf("command %q is denied", name)
				}
			}

			runCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
			defer cancel()

			cmd := exec.CommandContext(runCtx, "sh", "-c", args.Command)
			cmd.Dir = cfg.workDir

			out, err := cmd.CombinedOutput()
			if len(out) > cfg.maxOutputSize {
				out = append(out[:cfg.maxOutputSize], []byte("\n[output truncated]")...)
			}

			if runCtx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("command timed out after %s", cfg.timeout)
			}
			if err != nil {
				return "", fmt.Errorf("%w\n%s", err, out)
			}
			return string(out), nil
		},
		ai.CapabilityCommandExecution,
	)
}
