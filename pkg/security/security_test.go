package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Crypt(t *testing.T) {
	key := []byte("examplekey123456")
	plaintext := []byte("sk-super-secret-provider-token")

	ciphertext, err := EncryptCFB(plaintext, key)
	assert.NoError(t, err)
	assert.NotEqual(t, string(plaintext), string(ciphertext))

	decrypted, err := DecryptCFB(ciphertext, key)
	assert.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestNewCipher_BadKey(t *testing.T) {
	_, err := NewCipher("short")
	assert.Error(t, err)

	c, err := NewCipher("examplekey123456")
	assert.NoError(t, err)

	out, err := c.Encrypt([]byte("data"))
	assert.NoError(t, err)

	in, err := c.Decrypt(out)
	assert.NoError(t, err)
	assert.Equal(t, "data", string(in))
}
