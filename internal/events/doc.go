// Package events decouples request handling from background work. The
// generation service publishes a TaskRequestEvent describing the task it
// wants; handlers registered with the emitter turn it into running work.
// Emission is synchronous so that a handler's refusal (for example a full
// task queue) reaches the publisher.
package events
