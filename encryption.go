package memocache

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goforj/memocache/cachecore"
)

var (
	encryptionMagic = []byte("ENC1")

	ErrEncryptionKey = errors.New("memocache: encryption key must be 16, 24, or 32 bytes")
	ErrDecryptFailed = errors.New("memocache: decrypt failed")
)

// encryptingStore seals values with AES-GCM. The cache key is bound as
// additional data so a ciphertext cannot be replayed under another key.
type encryptingStore struct {
	inner Store
	aead  cipher.AEAD
}

func newEncryptingStore(inner Store, key []byte) (Store, error) {
	if len(key) == 0 {
		return inner, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: got %d", ErrEncryptionKey, len(key))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &encryptingStore{inner: inner, aead: aead}, nil
}

func (s *encryptingStore) Driver() Driver { return s.inner.Driver() }

func (s *encryptingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	enc, err := s.encrypt(key, value)
	if err != nil {
		return s.wrap("set", key, err)
	}
	return s.inner.Set(ctx, key, enc, ttl)
}

func (s *encryptingStore) Forever(ctx context.Context, key string, value []byte) error {
	enc, err := s.encrypt(key, value)
	if err != nil {
		return s.wrap("forever", key, err)
	}
	return s.inner.Forever(ctx, key, enc)
}

func (s *encryptingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	plain, err := s.decrypt(key, body)
	if err != nil {
		return nil, false, s.wrap("get", key, err)
	}
	return plain, true, nil
}

func (s *encryptingStore) Has(ctx context.Context, key string) (bool, error) {
	return s.inner.Has(ctx, key)
}

func (s *encryptingStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.inner.Delete(ctx, key)
}

func (s *encryptingStore) encrypt(key string, plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := s.aead.Seal(nil, nonce, plain, []byte(key))
	buf := make([]byte, 0, len(encryptionMagic)+1+len(nonce)+len(ct))
	buf = append(buf, encryptionMagic...)
	buf = append(buf, byte(len(nonce)))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return buf, nil
}

// decrypt opens a sealed value. Values without the magic prefix predate
// encryption and pass through.
func (s *encryptingStore) decrypt(key string, in []byte) ([]byte, error) {
	if len(in) < len(encryptionMagic)+1 || !bytes.Equal(in[:len(encryptionMagic)], encryptionMagic) {
		return in, nil
	}
	nonceLen := int(in[len(encryptionMagic)])
	offset := len(encryptionMagic) + 1
	if nonceLen != s.aead.NonceSize() || len(in) < offset+nonceLen {
		return nil, ErrDecryptFailed
	}
	nonce := in[offset : offset+nonceLen]
	plain, err := s.aead.Open(nil, nonce, in[offset+nonceLen:], []byte(key))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}

func (s *encryptingStore) wrap(op, key string, err error) error {
	return cachecore.WrapStoreError(s.inner.Driver(), op, key, err)
}
