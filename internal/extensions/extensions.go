// Package extensions runs post-run enrichment hooks over a completed run
// directory.
package extensions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/MalasadaTech/masq-monitor/internal/logger"
)

// Hook is one post-run pass over a run directory.
type Hook interface {
	Name() string
	Run(ctx context.Context, runDir string) error
}

// Runner executes hooks in declaration order. Hook failures are logged and
// swallowed; a broken extension must not fail the run that fed it.
type Runner struct {
	hooks []Hook
	log   logger.Interface
}

// NewRunner creates a runner over the given hooks.
func NewRunner(log logger.Interface, hooks ...Hook) *Runner {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Runner{hooks: hooks, log: log}
}

// Run executes every hook against the run directory.
func (r *Runner) Run(ctx context.Context, runDir string) {
	for _, hook := range r.hooks {
		if err := hook.Run(ctx, runDir); err != nil {
			r.log.Warn("Extension failed",
				"extension", hook.Name(),
				"run_dir", runDir,
				"error", err)
			continue
		}
		r.log.Info("Extension completed",
			"extension", hook.Name(),
			"run_dir", runDir)
	}
}

// CommandHook executes a configured command. The run directory is appended
// as the final argument and exported as MASQ_RUN_DIR.
type CommandHook struct {
	name string
	argv []string
}

// NewCommandHook creates a hook for one external command.
func NewCommandHook(name string, argv []string) *CommandHook {
	return &CommandHook{name: name, argv: argv}
}

// Name returns the configured hook name.
func (h *CommandHook) Name() string { return h.name }

// Run executes the command and waits for it to finish.
func (h *CommandHook) Run(ctx context.Context, runDir string) error {
	if len(h.argv) == 0 {
		return errors.New("no command configured")
	}

	args := append(append([]string{}, h.argv[1:]...), runDir)
	cmd := exec.CommandContext(ctx, h.argv[0], args...)
	cmd.Env = append(os.Environ(), "MASQ_RUN_DIR="+runDir)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command %q failed: %w: %s", h.argv[0], err, bytes.TrimSpace(out))
	}
	return nil
}
