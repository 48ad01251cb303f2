package scaffolder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/armon/circbuf"
	"github.com/phrazzld/scaffold-api/internal/config"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/generation"
)

// maxDiagnosticBytes is how much of the end of each output stream is kept.
// A failing tool prints its error last, and the text ends up in the task
// record.
const maxDiagnosticBytes = 4 * 1024

const truncatedMarker = "[earlier output truncated]\n"

// waitDelay bounds how long Wait blocks on output pipes after the process is killed.
const waitDelay = 5 * time.Second

// Generator runs the scaffolding CLI for each generation request.
type Generator struct {
	command         string
	args            []string
	timeout         time.Duration
	forwardExtended bool
	env             []string
	logger          *slog.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithEnv adds environment entries (KEY=value) for the child process on top
// of the server's own environment.
func WithEnv(env ...string) Option {
	return func(g *Generator) {
		g.env = append(g.env, env...)
	}
}

// NewGenerator creates a Generator from configuration.
func NewGenerator(logger *slog.Logger, cfg config.GeneratorConfig, opts ...Option) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("%w: command cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: timeout cannot be negative", generation.ErrInvalidConfig)
	}

	g := &Generator{
		command:         cfg.Command,
		args:            append([]string(nil), cfg.Args...),
		timeout:         cfg.Timeout,
		forwardExtended: cfg.ForwardExtendedOptions,
		logger:          logger.With(slog.String("component", "scaffolder")),
	}
	for _, opt := range opts {
		opt(g)
	}

	if _, err := exec.LookPath(g.command); err != nil {
		// Not fatal: the tool may be installed after startup.
		g.logger.Warn("project generator not found on PATH",
			slog.String("command", g.command),
			slog.String("error", err.Error()))
	}

	return g, nil
}

// Generate implements generation.Generator.
func (g *Generator) Generate(
	ctx context.Context,
	workspaceDir string,
	cfg domain.ProjectConfig,
) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), g.args...), BuildArgs(cfg, g.forwardExtended)...)

	cmd := exec.CommandContext(ctx, g.command, args...)
	cmd.Dir = workspaceDir
	cmd.WaitDelay = waitDelay
	if len(g.env) > 0 {
		cmd.Env = append(os.Environ(), g.env...)
	}

	stdout, err := circbuf.NewBuffer(maxDiagnosticBytes)
	if err != nil {
		return "", fmt.Errorf("failed to allocate output buffer: %w", err)
	}
	stderr, err := circbuf.NewBuffer(maxDiagnosticBytes)
	if err != nil {
		return "", fmt.Errorf("failed to allocate output buffer: %w", err)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	g.logger.DebugContext(ctx, "starting project generator",
		slog.String("command", g.command),
		slog.Int("arg_count", len(args)),
		slog.String("workspace", workspaceDir))

	started := time.Now()
	err = cmd.Run()
	diagnostics := tail(stderr)

	if err == nil {
		g.logger.DebugContext(ctx, "project generator finished",
			slog.Duration("duration", time.Since(started)))
		return diagnostics, nil
	}

	return diagnostics, g.classify(ctx, cmd, err, diagnostics, tail(stdout))
}

func (g *Generator) classify(ctx context.Context, cmd *exec.Cmd, err error, diagnostics, output string) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", generation.ErrGeneratorTimeout, g.timeout)
	case ctx.Err() != nil:
		return fmt.Errorf("project generator interrupted: %w", ctx.Err())
	case errors.Is(err, exec.ErrNotFound), isMissingExecutable(cmd, err):
		return fmt.Errorf("%w: %s", generation.ErrGeneratorNotFound, g.command)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if diagnostics == "" {
			diagnostics = output
		}
		return &generation.ExitError{Code: exitErr.ExitCode(), Diagnostics: diagnostics}
	}

	return fmt.Errorf("%w: %v", generation.ErrGeneratorFailed, err)
}

// BuildArgs renders a configuration as the CLI flags understood by the tool.
// Cloud, preset, template and analytics selections are only included when
// forwardExtended is set; empty values are never passed.
func BuildArgs(cfg domain.ProjectConfig, forwardExtended bool) []string {
	args := []string{
		"--framework=" + cfg.Framework,
		"--task-type=" + cfg.TaskType,
		"--tracking=" + cfg.ExperimentTracking,
		"--orchestration=" + cfg.Orchestration,
		"--deployment=" + cfg.Deployment,
		"--monitoring=" + cfg.Monitoring,
		"--project-name=" + cfg.ProjectName,
		"--author-name=" + cfg.AuthorName,
		"--description=" + cfg.Description,
	}
	if !forwardExtended {
		return args
	}

	optional := []struct{ flag, value string }{
		{"--cloud-provider", cfg.CloudProvider},
		{"--cloud-service", cfg.CloudService},
		{"--preset", cfg.Preset},
		{"--template", cfg.Template},
	}
	for _, o := range optional {
		if o.value != "" {
			args = append(args, o.flag+"="+o.value)
		}
	}
	if cfg.Analytics {
		args = append(args, "--analytics")
	}
	return args
}

// isMissingExecutable reports whether err says the program itself does not
// exist. A missing working directory also yields ENOENT, for the directory.
func isMissingExecutable(cmd *exec.Cmd, err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) &&
		pathErr.Path == cmd.Path &&
		errors.Is(pathErr.Err, os.ErrNotExist)
}

// tail returns the trimmed end of b. When output was dropped, the first
// partial line is cut and a marker says so.
func tail(b *circbuf.Buffer) string {
	out := string(b.Bytes())
	if b.TotalWritten() > b.Size() {
		if i := strings.IndexByte(out, '\n'); i >= 0 {
			out = out[i+1:]
		}
		out = truncatedMarker + strings.TrimSpace(strings.ToValidUTF8(out, ""))
	}
	return strings.TrimSpace(out)
}
