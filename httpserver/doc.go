/*
Package httpserver provides a self-contained registry stub speaking the
ProofService and KVService HTTP protocol.

The stub holds challenges, proof chains and kv records in memory and
enforces the same signature and policy checks the SDK performs locally. It
backs the registry_stub command for local development and the integration
tests, which drive it through the real HTTP clients.

The server exposes the registry routes under /v1 plus the usual health
endpoints (/livez, /readyz, /drain, /undrain) and an optional pprof mount.
*/
package httpserver
