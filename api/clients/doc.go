/*
Package clients provides the HTTP gateway clients for the NextID registries.

ProofServiceClient and KVServiceClient implement the api.ProofGateway and
api.KVGateway contracts against a ProofService / KVService deployment. Both
take a base server address and an optional *http.Client, propagate the
caller's context to every request, and treat any status outside 200/201 as a
structured api.RemoteError carrying the raw status and body.

The package also ships testify-based mock gateways (MockProofGateway,
MockKVGateway) so procedure logic can be tested without a network.
*/
package clients
