package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSigningKeyPair(t *testing.T) {
	keys, err := GenerateSigningKeyPair()
	require.NoError(t, err)

	assert.Len(t, keys.Private.Data, KeySize)
	assert.Len(t, keys.Public.Data, KeySize)
	assert.Equal(t, SigningAlgorithm, keys.Public.Algorithm)

	derived, err := DerivePublicSigningKey(keys.Private.Data)
	require.NoError(t, err)
	assert.Equal(t, keys.Public.Data, derived)

	other, err := GenerateSigningKeyPair()
	require.NoError(t, err)
	assert.False(t, keys.Public.Equal(other.Public), "two generated key pairs must differ")
}

func TestGenerateEncryptionKeyPair(t *testing.T) {
	keys, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)

	assert.Len(t, keys.Public.ID, encryptionKeyIDLength)
	assert.Equal(t, AnonymousEncryptionCipher, keys.Public.Algorithm)

	derived, err := DerivePublicEncryptionKey(keys.Private.Data)
	require.NoError(t, err)
	assert.Equal(t, keys.Public.Data, derived)
}

func TestKeyPairFromBase64(t *testing.T) {
	signing, err := GenerateSigningKeyPair()
	require.NoError(t, err)
	encryption, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)

	tests := []struct {
		name    string
		decode  func(string) (*KeyPair, error)
		input   string
		want    *KeyPair
		wantErr bool
	}{
		{
			name:   "signing private and public",
			decode: SigningKeyPairFromBase64,
			input:  signing.String(),
			want:   signing,
		},
		{
			name:   "signing seed only",
			decode: SigningKeyPairFromBase64,
			input:  signing.Private.String(),
			want:   signing,
		},
		{
			name:   "encryption private only",
			decode: func(s string) (*KeyPair, error) { return EncryptionKeyPairFromBase64(s, "") },
			input:  encryption.Private.String(),
			want:   encryption,
		},
		{
			name:    "bad length",
			decode:  SigningKeyPairFromBase64,
			input:   base64.StdEncoding.EncodeToString(make([]byte, 12)),
			wantErr: true,
		},
		{
			name:    "not base64",
			decode:  SigningKeyPairFromBase64,
			input:   "!!!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.decode(tt.input)
			if tt.wantErr {
				var cryptoErr *Error
				assert.ErrorAs(t, err, &cryptoErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Private.Data, got.Private.Data)
			assert.Equal(t, tt.want.Public.Data, got.Public.Data)
		})
	}
}

func TestSignVerify(t *testing.T) {
	keys, err := GenerateSigningKeyPair()
	require.NoError(t, err)

	data := []byte("checksum digest")
	signature, err := Sign(keys.Private, data)
	require.NoError(t, err)

	assert.NoError(t, Verify(keys.Public, data, signature))

	err = Verify(keys.Public, []byte("other data"), signature)
	assert.True(t, errors.Is(err, ErrVerify))

	raw, _ := base64.StdEncoding.DecodeString(signature)
	raw[0] ^= 0xff
	err = Verify(keys.Public, data, base64.StdEncoding.EncodeToString(raw))
	assert.True(t, errors.Is(err, ErrVerify))
}

func TestSignRejectsBadKey(t *testing.T) {
	_, err := Sign(Key{Data: []byte{1, 2, 3}}, []byte("data"))
	assert.True(t, errors.Is(err, ErrInvalidKeyLength))
	assert.True(t, errors.Is(err, ErrSign))
}

func TestAnonymousRoundTrip(t *testing.T) {
	recipient, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)
	stranger, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)

	plaintext := []byte("access key material")
	sealed, err := EncryptAnonymous(plaintext, recipient.Public)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, plaintext))

	opened, err := DecryptAnonymous(sealed, recipient.Private)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)

	_, err = DecryptAnonymous(sealed, stranger.Private)
	assert.True(t, errors.Is(err, ErrDecrypt))

	_, err = EncryptAnonymous(plaintext, Key{Data: make([]byte, 31)})
	assert.True(t, errors.Is(err, ErrInvalidKeyLength))
}

func TestSymmetricRoundTrip(t *testing.T) {
	key, err := RandomBytes(AccessKeySize)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hi")},
		{"long", bytes.Repeat([]byte("body "), 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := EncryptSymmetric(tt.data, key)
			require.NoError(t, err)
			assert.Len(t, ciphertext, 24+len(tt.data)+16)

			plaintext, err := DecryptSymmetric(ciphertext, key)
			require.NoError(t, err)
			assert.Equal(t, tt.data, append([]byte{}, plaintext...))
		})
	}
}

func TestSymmetricFailures(t *testing.T) {
	key, err := RandomBytes(AccessKeySize)
	require.NoError(t, err)

	ciphertext, err := EncryptSymmetric([]byte("secret"), key)
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0x01
	_, err = DecryptSymmetric(ciphertext, key)
	assert.True(t, errors.Is(err, ErrDecrypt))

	_, err = DecryptSymmetric([]byte("short"), key)
	assert.True(t, errors.Is(err, ErrDecrypt))

	_, err = EncryptSymmetric([]byte("x"), key[:16])
	assert.True(t, errors.Is(err, ErrInvalidKeyLength))
}

func TestRandomString(t *testing.T) {
	s, err := RandomString(64)
	require.NoError(t, err)
	assert.Len(t, s, 64)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(alphanumeric, r), "unexpected rune %q", r)
	}
}

func TestFingerprintAndChecksum(t *testing.T) {
	// sha256("")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Checksum(nil))
	assert.Equal(t, Checksum([]byte("key")), Fingerprint(Key{Data: []byte("key")}))
}

func TestAuthorization(t *testing.T) {
	keys, err := GenerateSigningKeyPair()
	require.NoError(t, err)

	header, err := Authorization("mail.example.com", *keys)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(header, "SOTN value="))

	key, err := VerifyAuthorization(header, "mail.example.com")
	require.NoError(t, err)
	assert.True(t, key.Equal(keys.Public))

	_, err = VerifyAuthorization(header, "mail.example.org")
	assert.True(t, errors.Is(err, ErrVerify))

	_, err = VerifyAuthorization("Bearer abc", "mail.example.com")
	assert.True(t, errors.Is(err, ErrMalformedAuthorization))
}
