// Package domain contains the core business entities, value objects, and
// domain logic of the application: the project configuration a client submits,
// its required-field validation, and the static catalog of stack options.
// It is independent of any specific infrastructure or delivery mechanism.
package domain
