// Package api exposes the generation task API over HTTP: submitting a project
// configuration, polling a task and downloading its archive. Handlers decode
// requests, call the service layer and translate its errors to status codes
// with messages that are safe to show clients.
package api
