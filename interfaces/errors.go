package interfaces

import "errors"

// ErrInvalidState is returned when a procedure transition is called out of
// order, for example submitting before a challenge has been requested.
var ErrInvalidState = errors.New("procedure is not in a valid state for this operation")

// ErrSignatureMismatch is returned when a supplied signature recovers to a
// public key (or derived address) that does not match the expected one.
var ErrSignatureMismatch = errors.New("recovered public key does not match the expected signer")

// ErrPolicyViolation is returned when the set of supplied signatures does not
// satisfy the policy rule for the procedure's platform and action.
var ErrPolicyViolation = errors.New("supplied signatures do not satisfy the signature policy")
