// Package filestore keeps task records in a single JSON registry file.
//
// One goroutine owns the in-memory mapping and the file. Every operation is
// sent to it as a message, so mutations are applied one at a time and none
// are lost. After each mutation the whole mapping is written to a temporary
// file beside the registry and renamed over it, so readers never observe a
// partial write. A registry that is missing or cannot be decoded is replaced
// by an empty one; a failed write is logged and the in-memory state remains
// authoritative until the next successful write.
package filestore
