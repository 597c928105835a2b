package challenge

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethid/ethid/core"
)

func TestNewNonceID(t *testing.T) {
	codec := NewCodec()

	first, err := codec.NewNonceID()
	require.NoError(t, err)
	assert.Len(t, first, 32) // 16 bytes, hex encoded

	second, err := codec.NewNonceID()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestURIRoundTrip(t *testing.T) {
	codec := NewCodec()

	callbacks := []string{
		"https://example.com/callback",
		"http://localhost:9000/callback",
		"https://auth.example.com:8443/v1/callback",
	}

	for _, callback := range callbacks {
		t.Run(callback, func(t *testing.T) {
			nonceID, err := codec.NewNonceID()
			require.NoError(t, err)

			uri, err := codec.BuildURI(callback, nonceID)
			require.NoError(t, err)

			gotNonce, err := codec.ExtractNonce(uri)
			require.NoError(t, err)
			assert.Equal(t, nonceID, gotNonce)

			gotCallback, err := codec.ExtractCallback(uri)
			require.NoError(t, err)
			assert.Equal(t, callback, gotCallback)
		})
	}
}

func TestBuildURIScheme(t *testing.T) {
	codec := NewCodec()

	uri, err := codec.BuildURI("https://example.com/callback", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "ethid://example.com/callback?x=abc123", uri)

	uri, err = codec.BuildURI("http://example.com/callback", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "ethid://example.com/callback?u=1&x=abc123", uri)
}

func TestBuildURIRejectsGarbage(t *testing.T) {
	codec := NewCodec()

	_, err := codec.BuildURI("not a uri", "abc")
	assert.Error(t, err)

	_, err = codec.BuildURI("/callback", "abc")
	assert.Error(t, err)
}

func TestExtractNonceMissing(t *testing.T) {
	codec := NewCodec()

	_, err := codec.ExtractNonce("ethid://example.com/callback")
	assert.Error(t, err)
}

func TestValidURI(t *testing.T) {
	codec := NewCodec()
	callback := "https://example.com/callback"

	uri, err := codec.BuildURI(callback, "abc123")
	require.NoError(t, err)

	assert.True(t, codec.ValidURI(uri, callback))

	// Addressed to someone else's callback.
	assert.False(t, codec.ValidURI("ethid://evil.example.com/callback?x=abc123", callback))

	// Wrong scheme.
	assert.False(t, codec.ValidURI("https://example.com/callback?x=abc123", callback))

	// No nonce.
	assert.False(t, codec.ValidURI("ethid://example.com/callback", callback))

	// http/https mismatch against the canonical endpoint.
	assert.False(t, codec.ValidURI("ethid://example.com/callback?u=1&x=abc123", callback))
}

func TestValidAddress(t *testing.T) {
	codec := NewCodec()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	assert.True(t, codec.ValidAddress(address.Hex()))
	assert.False(t, codec.ValidAddress("not-an-address"))
	assert.False(t, codec.ValidAddress(""))
	assert.False(t, codec.ValidAddress("0x1234"))
}

func TestCanonicalAddress(t *testing.T) {
	codec := NewCodec()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	checksummed := crypto.PubkeyToAddress(key.PublicKey).Hex()

	assert.Equal(t, checksummed, codec.CanonicalAddress(checksummed))
	assert.Equal(t, checksummed, codec.CanonicalAddress(strings.ToLower(checksummed)))
	assert.Equal(t, checksummed, codec.CanonicalAddress(strings.ToUpper(checksummed[2:])))
}

func TestVerifySignature(t *testing.T) {
	codec := NewCodec()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	uri, err := codec.BuildURI("https://example.com/callback", "abc123")
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(uri)), key)
	require.NoError(t, err)
	sig[64] += 27 // wallet-style V

	require.NoError(t, codec.VerifySignature(address, hexutil.Encode(sig), uri))
}

func TestVerifySignatureRejectsWrongSigner(t *testing.T) {
	codec := NewCodec()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	uri, err := codec.BuildURI("https://example.com/callback", "abc123")
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(uri)), other)
	require.NoError(t, err)
	sig[64] += 27

	err = codec.VerifySignature(crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(sig), uri)
	assert.True(t, errors.Is(err, core.ErrInvalidSignature))
}

func TestVerifySignatureRejectsTamperedURI(t *testing.T) {
	codec := NewCodec()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	uri, err := codec.BuildURI("https://example.com/callback", "abc123")
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(uri)), key)
	require.NoError(t, err)
	sig[64] += 27

	tampered, err := codec.BuildURI("https://example.com/callback", "def456")
	require.NoError(t, err)

	err = codec.VerifySignature(address, hexutil.Encode(sig), tampered)
	assert.True(t, errors.Is(err, core.ErrInvalidSignature))
}

func TestVerifySignatureRejectsMalformed(t *testing.T) {
	codec := NewCodec()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	err = codec.VerifySignature(address, "not-hex", "ethid://example.com/callback?x=a")
	assert.True(t, errors.Is(err, core.ErrInvalidSignature))

	err = codec.VerifySignature(address, "0xdeadbeef", "ethid://example.com/callback?x=a")
	assert.True(t, errors.Is(err, core.ErrInvalidSignature))
}
