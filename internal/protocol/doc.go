// Package protocol owns the wire contract shared by the map-reduce client.
//
// Ownership boundary:
// - etf term encoding primitives
// - request frame assembly
// - fixed-shape reply header parsing
// - error kinds surfaced to callers
package protocol
