// Package protocol owns the file transfer wire contract.
//
// Ownership boundary:
// - control token and field marker literals
// - transfer limits and field validation
// - error taxonomy shared by codec and session layers
package protocol
