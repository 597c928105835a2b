// Package challenge implements the challenge URI codec: BitID-style URIs
// carrying a nonce, signed with the Ethereum personal-sign scheme.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethid/ethid/core"
	"github.com/ethid/ethid/ports"
)

// Scheme identifies the protocol in challenge URIs.
const Scheme = "ethid"

const (
	nonceParam    = "x"
	unsecureParam = "u" // set to 1 when the callback endpoint is plain http
)

// Codec builds and parses challenge URIs and verifies Ethereum
// personal-sign signatures over them.
type Codec struct{}

// NewCodec creates a challenge codec.
func NewCodec() *Codec {
	return &Codec{}
}

var _ ports.ChallengeCodec = (*Codec)(nil)

// NewNonceID returns 16 random bytes, hex encoded.
func (c *Codec) NewNonceID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// BuildURI embeds the nonce into a challenge URI for the callback endpoint.
// The callback's scheme is replaced by the protocol scheme; plain-http
// callbacks are marked with u=1 so the signer can rebuild the exact
// callback address.
func (c *Codec) BuildURI(callback, nonceID string) (string, error) {
	parsed, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("invalid callback uri %q: %w", callback, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("callback uri %q has no host", callback)
	}

	query := url.Values{}
	query.Set(nonceParam, nonceID)
	if parsed.Scheme == "http" {
		query.Set(unsecureParam, "1")
	}

	uri := url.URL{
		Scheme:   Scheme,
		Host:     parsed.Host,
		Path:     parsed.Path,
		RawQuery: query.Encode(),
	}
	return uri.String(), nil
}

// ExtractNonce returns the nonce id embedded in a challenge URI.
func (c *Codec) ExtractNonce(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid challenge uri: %w", err)
	}
	nonce := parsed.Query().Get(nonceParam)
	if nonce == "" {
		return "", fmt.Errorf("challenge uri %q carries no nonce", uri)
	}
	return nonce, nil
}

// ExtractCallback rebuilds the callback endpoint a challenge URI is
// addressed to.
func (c *Codec) ExtractCallback(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid challenge uri: %w", err)
	}
	scheme := "https"
	if parsed.Query().Get(unsecureParam) == "1" {
		scheme = "http"
	}
	callback := url.URL{Scheme: scheme, Host: parsed.Host, Path: parsed.Path}
	return callback.String(), nil
}

// ValidAddress reports whether the address is a well-formed Ethereum
// address.
func (c *Codec) ValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// CanonicalAddress returns the EIP-55 checksummed form of the address.
// Signature verification ignores case, so every casing of the same address
// must map to one canonical string before it is used as a store key.
func (c *Codec) CanonicalAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// ValidURI reports whether uri is a well-formed challenge addressed to the
// given callback endpoint.
func (c *Codec) ValidURI(uri, callback string) bool {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != Scheme {
		return false
	}
	if parsed.Query().Get(nonceParam) == "" {
		return false
	}

	embedded, err := c.ExtractCallback(uri)
	if err != nil {
		return false
	}
	return embedded == callback
}

// VerifySignature checks an Ethereum personal-sign signature over the full
// challenge URI and compares the recovered address against the claimed one.
func (c *Codec) VerifySignature(address, signature, uri string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != 65 {
		return fmt.Errorf("signature must be 65 bytes: %w", core.ErrInvalidSignature)
	}

	// Wallets emit V as 27/28; recovery expects 0/1.
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(uri)), sig)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}

	if crypto.PubkeyToAddress(*pubKey) != common.HexToAddress(address) {
		return core.ErrInvalidSignature
	}
	return nil
}
