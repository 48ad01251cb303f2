// Package scaffolder implements generation.Generator by running the project
// scaffolding CLI as a child process inside the task workspace.
package scaffolder
