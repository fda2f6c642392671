package security

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// Cipher 负责 provider api_key 的落库加解密。密钥来自配置，
// 算法对上层透明，核心逻辑只依赖 Encrypt/Decrypt 两个能力。
type Cipher struct {
	key []byte
}

func NewCipher(key string) (*Cipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("invalid encrypt key length %d, want 16/24/32", len(key))
	}
	return &Cipher{key: []byte(key)}, nil
}

func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	return EncryptCFB(plaintext, c.key)
}

func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	return DecryptCFB(ciphertext, c.key)
}

// EncryptCFB 返回 hex(iv + ciphertext)
func EncryptCFB(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(crand.Reader, iv); err != nil {
		return nil, err
	}

	ciphertext := make([]byte, len(plaintext))
	encrypter := cipher.NewCFBEncrypter(block, iv)
	encrypter.XORKeyStream(ciphertext, plaintext)

	result := append(iv, ciphertext...)

	dst := make([]byte, hex.EncodedLen(len(result)))
	hex.Encode(dst, result)
	return dst, nil
}

func DecryptCFB(ciphertext, key []byte) ([]byte, error) {
	dst := make([]byte, hex.DecodedLen(len(ciphertext)))
	n, err := hex.Decode(dst, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("wrong ciphertext encoding, %w", err)
	}
	ciphertext = dst[:n]

	if len(ciphertext) < aes.BlockSize {
		return nil, fmt.Errorf("wrong ciphertext")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	ciphertext = ciphertext[aes.BlockSize:]

	plaintext := make([]byte, len(ciphertext))
	decrypter := cipher.NewCFBDecrypter(block, iv)
	decrypter.XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}
