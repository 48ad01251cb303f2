// Package task runs project generation in the background. It defines the
// task record and its status state machine, the TaskStore contract, a bounded
// queue drained by a worker pool, and the generation pipeline that turns a
// pending record into a downloadable archive or a failure. Unfinished records
// are recovered when the runner starts.
package task
