package archive

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Encrypted payload layout: magic || salt || nonce || AES-256-GCM ciphertext.
var encMagic = []byte("bakthat1")

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// ErrWrongPassword is returned when an encrypted payload cannot be opened,
// from a wrong password or a corrupted stream.
var ErrWrongPassword = errors.New("wrong password or corrupt payload")

// DeriveKey stretches a password into an AES-256 key with argon2id.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keySize)
}

// Encrypt seals everything read from r with a key derived from password and
// writes the self-describing encrypted payload to w. Each call draws a fresh
// salt and nonce.
func Encrypt(r io.Reader, w io.Writer, password []byte) error {
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	aesgcm, err := newGCM(DeriveKey(password, salt))
	if err != nil {
		return err
	}

	for _, part := range [][]byte{encMagic, salt, nonce} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	_, err = w.Write(aesgcm.Seal(nil, nonce, plaintext, nil))
	return err
}

// Decrypt opens an encrypted payload from r and writes the plaintext to w.
func Decrypt(r io.Reader, w io.Writer, password []byte) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	header := len(encMagic) + saltSize + nonceSize
	if len(data) < header || !bytes.HasPrefix(data, encMagic) {
		return fmt.Errorf("not an encrypted payload")
	}
	salt := data[len(encMagic) : len(encMagic)+saltSize]
	nonce := data[len(encMagic)+saltSize : header]

	aesgcm, err := newGCM(DeriveKey(password, salt))
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, data[header:], nil)
	if err != nil {
		return ErrWrongPassword
	}
	_, err = w.Write(plaintext)
	return err
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
