package sealedbox_test

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/box"

	"github.com/systmms/ghsecrets/pkg/sealedbox"
)

func newRecipient(t *testing.T) (pub, priv *[32]byte) {
	t.Helper()
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestOverheadIs48(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 48, sealedbox.Overhead)
}

func TestSealLength(t *testing.T) {
	t.Parallel()

	pub, _ := newRecipient(t)

	for _, size := range []int{0, 1, 16, 255, 4096, 48 * 1024} {
		plaintext := bytes.Repeat([]byte("x"), size)
		sealed, err := sealedbox.Seal(plaintext, pub)
		require.NoError(t, err)
		assert.Len(t, sealed, size+48, "plaintext size %d", size)
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	t.Parallel()

	pub, priv := newRecipient(t)
	plaintext := []byte("test-value")

	first, err := sealedbox.Seal(plaintext, pub)
	require.NoError(t, err)
	second, err := sealedbox.Seal(plaintext, pub)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, first[:32], second[:32], "ephemeral keys must differ")

	for _, sealed := range [][]byte{first, second} {
		opened, ok := box.OpenAnonymous(nil, sealed, pub, priv)
		require.True(t, ok)
		assert.Equal(t, plaintext, opened)
	}
}

func TestSealMatchesManualConstruction(t *testing.T) {
	t.Parallel()

	recipientSeed := bytes.Repeat([]byte{0x42}, 32)
	recipientPub, recipientPriv, err := box.GenerateKey(bytes.NewReader(recipientSeed))
	require.NoError(t, err)

	ephemeralSeed := bytes.Repeat([]byte{0x07}, 32)
	plaintext := []byte("hunter2")

	sealed, err := sealedbox.SealWithRand(bytes.NewReader(ephemeralSeed), plaintext, recipientPub)
	require.NoError(t, err)

	ephemeralPub, ephemeralPriv, err := box.GenerateKey(bytes.NewReader(ephemeralSeed))
	require.NoError(t, err)

	h, err := blake2b.New(24, nil)
	require.NoError(t, err)
	h.Write(ephemeralPub[:])
	h.Write(recipientPub[:])
	var nonce [24]byte
	copy(nonce[:], h.Sum(nil))

	expected := box.Seal(append([]byte{}, ephemeralPub[:]...), plaintext, &nonce, recipientPub, ephemeralPriv)
	assert.Equal(t, expected, sealed)
	assert.Equal(t, ephemeralPub[:], sealed[:32])

	opened, ok := box.OpenAnonymous(nil, sealed, recipientPub, recipientPriv)
	require.True(t, ok)
	assert.Equal(t, plaintext, opened)
}

func TestSealDetectsTampering(t *testing.T) {
	t.Parallel()

	pub, priv := newRecipient(t)
	sealed, err := sealedbox.Seal([]byte("integrity"), pub)
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	assert.False(t, ok)
}

func TestSealRejectsNilRecipient(t *testing.T) {
	t.Parallel()

	_, err := sealedbox.Seal([]byte("x"), nil)
	assert.ErrorIs(t, err, sealedbox.ErrInvalidPublicKey)
}

func TestSealFailsOnShortEntropy(t *testing.T) {
	t.Parallel()

	pub, _ := newRecipient(t)
	_, err := sealedbox.SealWithRand(bytes.NewReader([]byte{1, 2, 3}), []byte("x"), pub)
	assert.Error(t, err)
}

func TestParsePublicKey(t *testing.T) {
	t.Parallel()

	pub, _ := newRecipient(t)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: base64.StdEncoding.EncodeToString(pub[:])},
		{name: "too short", input: base64.StdEncoding.EncodeToString([]byte("too-short-key")), wantErr: true},
		{name: "too long", input: base64.StdEncoding.EncodeToString(make([]byte, 33)), wantErr: true},
		{name: "not base64", input: "not-valid-base64!!!", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key, err := sealedbox.ParsePublicKey(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, sealedbox.ErrInvalidPublicKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, pub, key)
		})
	}
}

func TestEncryptString(t *testing.T) {
	t.Parallel()

	pub, priv := newRecipient(t)

	encoded, err := sealedbox.EncryptString([]byte("test-secret-value"), pub)
	require.NoError(t, err)
	assert.NotEqual(t, "test-secret-value", encoded)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Len(t, raw, len("test-secret-value")+sealedbox.Overhead)

	opened, ok := box.OpenAnonymous(nil, raw, pub, priv)
	require.True(t, ok)
	assert.Equal(t, "test-secret-value", string(opened))
}
