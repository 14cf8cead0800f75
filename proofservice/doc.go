/*
Package proofservice implements the client-side proof procedure against a
NextID ProofService registry.

A Procedure walks one proof modification (binding or revoking a platform
identity) through a fixed, forward-only state machine: request a challenge,
collect signatures out of band, validate them locally against the policy for
the platform and action, then submit. FindBy queries the registry for the
avatars currently bound to an identity.
*/
package proofservice
