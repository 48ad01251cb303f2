// Package generation defines the boundary between the task pipeline and the
// external project scaffolding tool. The Generator interface lets the pipeline
// produce a project tree inside a workspace directory without knowing how the
// tool is invoked; the exec-backed implementation lives in platform/scaffolder.
package generation
