package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte("k"), 32)
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	encrypted, err := c.EncryptString("squ_0123456789abcdef")
	require.NoError(t, err)
	assert.NotEqual(t, "squ_0123456789abcdef", encrypted)

	decrypted, err := c.DecryptString(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "squ_0123456789abcdef", decrypted)
}

func TestCipherEmptyString(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	encrypted, err := c.EncryptString("")
	require.NoError(t, err)
	assert.Empty(t, encrypted)

	decrypted, err := c.DecryptString("")
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestCipherUniqueNonce(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	first, err := c.EncryptString("same value")
	require.NoError(t, err)
	second, err := c.EncryptString("same value")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCipherInvalidKey(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCipherInvalidCiphertext(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	_, err = c.DecryptString("not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = c.DecryptString("dG9vc2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestCipherTamperedCiphertext(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	encrypted, err := c.EncryptString("payload")
	require.NoError(t, err)

	tampered := "A" + encrypted[1:]
	if tampered == encrypted {
		tampered = "B" + encrypted[1:]
	}
	_, err = c.DecryptString(tampered)
	assert.Error(t, err)
}

func TestFromKey(t *testing.T) {
	t.Run("empty key yields noop", func(t *testing.T) {
		enc, err := FromKey("")
		require.NoError(t, err)
		assert.IsType(t, NoOpEncryptor{}, enc)
	})

	t.Run("raw 32 byte key", func(t *testing.T) {
		enc, err := FromKey(string(testKey()))
		require.NoError(t, err)
		assert.IsType(t, &Cipher{}, enc)
	})

	t.Run("base64 encoded key", func(t *testing.T) {
		enc, err := FromKey(base64.StdEncoding.EncodeToString(testKey()))
		require.NoError(t, err)
		assert.IsType(t, &Cipher{}, enc)
	})

	t.Run("wrong key length", func(t *testing.T) {
		_, err := FromKey("too-short")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}
