package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("test-secret")
	require.NoError(t, err)

	sealed, err := c.Encrypt("hello")
	require.NoError(t, err)
	assert.NotEqual(t, "hello", sealed)

	again, err := c.Encrypt("hello")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ between calls")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", plain)
}

func TestCipherRejectsForeignCiphertext(t *testing.T) {
	a, err := NewCipher("secret-a")
	require.NoError(t, err)
	b, err := NewCipher("secret-b")
	require.NoError(t, err)

	sealed, err := a.Encrypt("hello")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = a.Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = a.Decrypt("")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestNewCipherRequiresSecret(t *testing.T) {
	_, err := NewCipher("")
	assert.Error(t, err)
}
