package ports

// ChallengeCodec builds and parses challenge URIs and verifies signatures
// over them. The orchestrator never inspects signature bytes itself.
//
// Round-trip law: ExtractNonce(BuildURI(c, n)) == n and
// ExtractCallback(BuildURI(c, n)) == c for every callback endpoint c and
// nonce id n.
type ChallengeCodec interface {
	// NewNonceID generates a fresh opaque nonce identifier.
	NewNonceID() (string, error)

	// BuildURI embeds the nonce id into a challenge URI addressed to the
	// callback endpoint.
	BuildURI(callback, nonceID string) (string, error)

	// ExtractNonce and ExtractCallback invert BuildURI.
	ExtractNonce(uri string) (string, error)
	ExtractCallback(uri string) (string, error)

	// ValidAddress reports whether the address is well-formed.
	ValidAddress(address string) bool

	// CanonicalAddress returns the canonical form of a well-formed address.
	// All casings of the same address canonicalize to the same string, so
	// the stores can key on it directly.
	CanonicalAddress(address string) string

	// ValidURI reports whether the URI is a well-formed challenge whose
	// embedded callback matches the given endpoint.
	ValidURI(uri, callback string) bool

	// VerifySignature checks the signature over the challenge URI against
	// the address, returning an error wrapping core.ErrInvalidSignature on
	// any mismatch.
	VerifySignature(address, signature, uri string) error
}
