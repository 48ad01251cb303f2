// Package service contains the application use cases of the generation API.
//
// GenerationService validates submitted project configurations, requests
// their generation through the event emitter, and resolves task records and
// archives for the delivery layer. It depends on the task store contract and
// the event emitter interface only, never on a concrete backend.
package service
