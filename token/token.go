// Package token implements the session-token cache of the hybrid mode
// wrapper: short-lived, pre-signed capability credentials issued while
// the device is online, consumed later in lieu of a fresh threshold
// signing session. A token is a Schnorr signature under the group public
// key over a transcript-bound descriptor of (capability, validity
// window, nonce); the cache enforces a bounded size, a bounded validity
// window, and single-use-per-nonce replay protection with
// expiration-driven pruning of the replay set.
package token

import (
	"io"
	"time"

	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/signing"
)

// DefaultValidity is the default lifetime of a freshly issued token.
const DefaultValidity = 4 * time.Hour

// DefaultCacheSize is the default bound on the number of live tokens a
// Cache holds at once.
const DefaultCacheSize = 20

// NonceSize is the byte length of a token's replay-protection nonce.
const NonceSize = 16

// Nonce uniquely identifies one issued token for replay-detection
// purposes.
type Nonce [NonceSize]byte

// CapabilityKind enumerates the operations a token can authorize.
type CapabilityKind int

const (
	DeviceUnlock CapabilityKind = iota
	KeychainDecrypt
	Payment
)

// Capability describes what a token authorizes. Amount and Currency are
// only meaningful when Kind is Payment; two capabilities are Equal only
// when their kind (and, for Payment, amount and currency) match exactly,
// so a token issued for a $5 payment can never satisfy a request for a
// $500 one.
type Capability struct {
	Kind     CapabilityKind
	Amount   uint64
	Currency string
}

// Equal reports whether c authorizes exactly the same operation as
// other.
func (c Capability) Equal(other Capability) bool {
	if c.Kind != other.Kind {
		return false
	}
	if c.Kind != Payment {
		return true
	}
	return c.Amount == other.Amount && c.Currency == other.Currency
}

// Token is a capability credential: a signature under the group public
// key attesting that the holder may perform the described operation
// between NotBefore and NotAfter.
type Token struct {
	Nonce      Nonce
	Capability Capability
	NotBefore  time.Time
	NotAfter   time.Time
	Signature  *signing.Signature
}

// descriptorMessage builds the deterministic, non-secret message a token
// signs: nonce, capability, and validity window, absorbed through the
// token-labeled transcript so a token can never be confused with any
// other signed payload this module produces (a rotation proof, a
// device-key derivation proof).
func descriptorMessage(nonce Nonce, cap Capability, notBefore, notAfter time.Time) []byte {
	tr := group.NewTokenTranscript().
		AbsorbBytes(nonce[:]).
		AbsorbUint64(uint64(cap.Kind)).
		AbsorbUint64(cap.Amount).
		AbsorbLabel(cap.Currency).
		AbsorbUint64(uint64(notBefore.Unix())).
		AbsorbUint64(uint64(notAfter.Unix()))
	return tr.Squeeze().Bytes()
}

// DescriptorMessage is the exported form of descriptorMessage, for
// callers that need to drive a signing.Session/Coordinator pair
// themselves to produce the signature Issue expects.
func DescriptorMessage(nonce Nonce, cap Capability, notBefore, notAfter time.Time) []byte {
	return descriptorMessage(nonce, cap, notBefore, notAfter)
}

// NewNonce draws a fresh random nonce from rng.
func NewNonce(rng io.Reader) (Nonce, error) {
	var n Nonce
	if _, err := io.ReadFull(rng, n[:]); err != nil {
		return Nonce{}, &ferrors.RngFailure{Reason: err.Error()}
	}
	return n, nil
}

// entry is one cached token plus its replay status.
type entry struct {
	token    *Token
	consumed bool
}

// Cache holds at most size live tokens and an expiration-pruned replay
// set of consumed nonces. It is a single-writer/multiple-reader resource:
// callers are responsible for serializing concurrent access.
type Cache struct {
	size    int
	tokens  []*entry
	replay  map[Nonce]time.Time
	groupPK *group.Point
}

// NewCache builds an empty cache bounded at size (DefaultCacheSize if
// zero) for tokens issued under groupPublicKey.
func NewCache(groupPublicKey *group.Point, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		size:    size,
		groupPK: groupPublicKey,
		replay:  make(map[Nonce]time.Time),
	}
}

// Issue produces and caches a new token authorizing cap between
// notBefore and notAfter, signing its descriptor via the caller-supplied
// signer closure (typically a completed signing.Session/Coordinator pair
// run while the device is online). If the cache is at capacity, the
// oldest cached token is evicted to make room.
func (c *Cache) Issue(
	rng io.Reader,
	cap Capability,
	notBefore, notAfter time.Time,
	signer func(message []byte) (*signing.Signature, error),
) (*Token, error) {
	if !notAfter.After(notBefore) {
		return nil, &ferrors.InvalidParameters{Reason: "token validity window must be non-empty"}
	}

	nonce, err := NewNonce(rng)
	if err != nil {
		return nil, err
	}

	message := descriptorMessage(nonce, cap, notBefore, notAfter)
	sig, err := signer(message)
	if err != nil {
		return nil, err
	}
	if !signing.Verify(c.groupPK, message, sig) {
		return nil, &ferrors.VerificationFailed{Reason: "issued token signature does not verify under group public key"}
	}

	tok := &Token{
		Nonce:      nonce,
		Capability: cap,
		NotBefore:  notBefore,
		NotAfter:   notAfter,
		Signature:  sig,
	}

	if len(c.tokens) >= c.size {
		c.tokens = c.tokens[1:]
	}
	c.tokens = append(c.tokens, &entry{token: tok})

	return tok, nil
}

// Consume scans the cache for the first token covering requested that is
// inside its validity window as of now and has not been consumed before,
// marks it consumed, and returns it. An expired or already-consumed token
// never shadows a later valid one for the same capability; only when no
// valid candidate exists does the rejection report why the nearest misses
// failed: TokenReplayed if an in-window match was already consumed,
// TokenExpired if every match fell outside its window, and
// CapabilityMismatch if nothing covered the capability at all.
// pruneExpired runs after the lookup, not before: an expired token must
// still be found and reported as TokenExpired rather than vanish from
// the cache first and come back as CapabilityMismatch.
func (c *Cache) Consume(requested Capability, now time.Time) (*Token, error) {
	defer c.pruneExpired(now)

	var expired, replayed *Token
	for _, e := range c.tokens {
		tok := e.token
		if !tok.Capability.Equal(requested) {
			continue
		}
		if now.Before(tok.NotBefore) || !now.Before(tok.NotAfter) {
			expired = tok
			continue
		}
		if _, seen := c.replay[tok.Nonce]; seen || e.consumed {
			replayed = tok
			continue
		}

		e.consumed = true
		c.replay[tok.Nonce] = tok.NotAfter
		return tok, nil
	}

	switch {
	case replayed != nil:
		return nil, &ferrors.TokenReplayed{TokenID: nonceLabel(replayed.Nonce)}
	case expired != nil:
		return nil, &ferrors.TokenExpired{TokenID: nonceLabel(expired.Nonce)}
	default:
		return nil, &ferrors.CapabilityMismatch{Want: capabilityLabel(requested)}
	}
}

// pruneExpired drops replay-set entries and cached tokens whose validity
// window has fully elapsed as of now.
func (c *Cache) pruneExpired(now time.Time) {
	for nonce, expiry := range c.replay {
		if !now.Before(expiry) {
			delete(c.replay, nonce)
		}
	}

	live := c.tokens[:0]
	for _, e := range c.tokens {
		if now.Before(e.token.NotAfter) {
			live = append(live, e)
		}
	}
	c.tokens = live
}

func capabilityLabel(cap Capability) string {
	switch cap.Kind {
	case DeviceUnlock:
		return "device-unlock"
	case KeychainDecrypt:
		return "keychain-decrypt"
	case Payment:
		return "payment"
	default:
		return "unknown"
	}
}

func nonceLabel(n Nonce) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, 2*len(n))
	for _, b := range n {
		out = append(out, hexDigits[b>>4], hexDigits[b&0xf])
	}
	return string(out)
}
