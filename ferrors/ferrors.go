// Package ferrors defines the typed error values returned across this
// module's protocol packages. Each type carries the structured data a
// caller needs to react programmatically (which participant misbehaved,
// which token expired) while still satisfying the plain error interface,
// and each composes with errors.Is/errors.As and errors.Join the way the
// standard library expects.
package ferrors

import "fmt"

// InvalidEncoding reports that a wire value failed to decode: wrong
// length, non-canonical field encoding, or an unrecognized type tag.
type InvalidEncoding struct {
	Field  string
	Reason string
}

func (e *InvalidEncoding) Error() string {
	return fmt.Sprintf("ferrors: invalid encoding for %s: %s", e.Field, e.Reason)
}

// InvalidParameters reports that a caller supplied arguments that violate
// a precondition (threshold greater than group size, duplicate
// participant ids, an empty signer set).
type InvalidParameters struct {
	Reason string
}

func (e *InvalidParameters) Error() string {
	return fmt.Sprintf("ferrors: invalid parameters: %s", e.Reason)
}

// VerificationFailed reports that a cryptographic check failed that is
// attributable to a specific participant: a Pedersen commitment that does
// not match a received share, a nonce commitment that does not match a
// signature share.
type VerificationFailed struct {
	Participant uint16
	Reason      string
}

func (e *VerificationFailed) Error() string {
	return fmt.Sprintf("ferrors: verification failed for participant %d: %s", e.Participant, e.Reason)
}

// ProtocolState reports that an operation was attempted on a state
// machine (a DKG ceremony, a signing session) in a state that does not
// permit it: Round2 called before Round1, MarkAggregated called twice.
type ProtocolState struct {
	Operation string
	State     string
}

func (e *ProtocolState) Error() string {
	return fmt.Sprintf("ferrors: operation %s not valid in state %s", e.Operation, e.State)
}

// InsufficientSigners reports that fewer signers participated than the
// group's threshold requires.
type InsufficientSigners struct {
	Have uint16
	Need uint16
}

func (e *InsufficientSigners) Error() string {
	return fmt.Sprintf("ferrors: insufficient signers: have %d, need %d", e.Have, e.Need)
}

// TokenExpired reports that a capability token was presented after its
// validity window elapsed.
type TokenExpired struct {
	TokenID string
}

func (e *TokenExpired) Error() string {
	return fmt.Sprintf("ferrors: token %s expired", e.TokenID)
}

// TokenReplayed reports that a capability token was presented a second
// time; tokens are single-use once consumed.
type TokenReplayed struct {
	TokenID string
}

func (e *TokenReplayed) Error() string {
	return fmt.Sprintf("ferrors: token %s already consumed", e.TokenID)
}

// CapabilityMismatch reports that a token was presented for an operation
// it does not authorize.
type CapabilityMismatch struct {
	TokenID string
	Have    string
	Want    string
}

func (e *CapabilityMismatch) Error() string {
	return fmt.Sprintf(
		"ferrors: token %s grants capability %s, not %s",
		e.TokenID, e.Have, e.Want,
	)
}

// RngFailure reports that reading from a caller-supplied randomness
// source failed.
type RngFailure struct {
	Reason string
}

func (e *RngFailure) Error() string {
	return fmt.Sprintf("ferrors: random source failure: %s", e.Reason)
}

// FallbackDenied reports that a hybrid signing request could complete
// neither a live threshold session nor a cached token, and the degraded
// single-share path is out of scope for this module.
type FallbackDenied struct {
	Reason string
}

func (e *FallbackDenied) Error() string {
	return fmt.Sprintf("ferrors: no signing path available: %s", e.Reason)
}
