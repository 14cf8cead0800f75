// Package api defines the wire types and provider contracts of the NextID
// registry API, separating the procedure state machines from any concrete
// transport.
//
// Procedures depend on the narrow ProofGateway / KVGateway interfaces; the
// HTTP implementations live in api/clients and an in-memory implementation
// backs the development server in httpserver. Public keys travel as
// 0x-prefixed hexstrings and signatures as base64 of the 65-byte envelope.
package api
