package generation

import (
	"context"

	"github.com/phrazzld/scaffold-api/internal/domain"
)

// Generator produces a project tree for a configuration.
type Generator interface {
	// Generate runs the scaffolding tool with workspaceDir as its working
	// directory and returns whatever the tool wrote to its diagnostic stream.
	// Diagnostics alone never indicate failure. The error is an *ExitError
	// when the tool exited unsuccessfully, or wraps ErrGeneratorNotFound,
	// ErrGeneratorTimeout or a context error when it could not run to completion.
	Generate(ctx context.Context, workspaceDir string, cfg domain.ProjectConfig) (diagnostics string, err error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, workspaceDir string, cfg domain.ProjectConfig) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, workspaceDir string, cfg domain.ProjectConfig) (string, error) {
	return f(ctx, workspaceDir, cfg)
}
