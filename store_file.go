package memocache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goforj/memocache/cachecore"
)

var (
	createTempFile = os.CreateTemp
	renameFile     = os.Rename
)

// fileRecordMagic prefixes every entry, followed by the big-endian unix
// millisecond expiry (0 for forever) and the raw value.
var fileRecordMagic = []byte("CFR1")

const fileRecordHeaderLen = 12

var errCorruptFileRecord = errors.New("corrupt file record")

type fileStore struct {
	dir string
	now Clock
}

func newFileStore(dir string, clock Clock) Store {
	if dir == "" {
		dir = defaultFileDir()
	}
	if clock == nil {
		clock = cachecore.SystemClock
	}
	_ = os.MkdirAll(dir, 0o755)
	return &fileStore{
		dir: dir,
		now: clock,
	}
}

func (s *fileStore) Driver() Driver {
	return DriverFile
}

func (s *fileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := s.Delete(ctx, key)
		return err
	}
	return s.write("set", key, cachecore.NewPayload(value, ttl, s.now()))
}

func (s *fileStore) Forever(_ context.Context, key string, value []byte) error {
	return s.write("forever", key, cachecore.ForeverPayload(value))
}

func (s *fileStore) write(op, key string, payload cachecore.Payload) error {
	tmp, err := createTempFile(s.dir, "memo-*")
	if err != nil {
		return s.wrap(op, key, err)
	}
	tmpPath := tmp.Name()

	var header [fileRecordHeaderLen]byte
	copy(header[:4], fileRecordMagic)
	binary.BigEndian.PutUint64(header[4:], uint64(payload.ExpiresAtMillis()))

	if _, err := tmp.Write(header[:]); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return s.wrap(op, key, err)
	}
	if _, err := tmp.Write(payload.Data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return s.wrap(op, key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return s.wrap(op, key, err)
	}
	if err := renameFile(tmpPath, s.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return s.wrap(op, key, err)
	}
	return nil
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	return s.read("get", key)
}

func (s *fileStore) Has(_ context.Context, key string) (bool, error) {
	_, ok, err := s.read("has", key)
	return ok, err
}

func (s *fileStore) read(op, key string) ([]byte, bool, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, s.wrap(op, key, err)
	}
	expiresAt, value, err := decodeFileRecord(data)
	if err != nil {
		_ = os.Remove(path)
		return nil, false, s.wrap(op, key, err)
	}
	if cachecore.ExpiredAtMillis(expiresAt, s.now()) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *fileStore) Delete(_ context.Context, key string) (bool, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, s.wrap("delete", key, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, s.wrap("delete", key, err)
	}
	expiresAt, _, err := decodeFileRecord(data)
	if err != nil {
		return false, nil
	}
	return !cachecore.ExpiredAtMillis(expiresAt, s.now()), nil
}

func (s *fileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".memo")
}

func (s *fileStore) wrap(op, key string, err error) error {
	return cachecore.WrapStoreError(DriverFile, op, key, err)
}

func decodeFileRecord(data []byte) (int64, []byte, error) {
	if len(data) < fileRecordHeaderLen || !bytes.Equal(data[:4], fileRecordMagic) {
		return 0, nil, fmt.Errorf("%w: %d bytes", errCorruptFileRecord, len(data))
	}
	expiresAt := int64(binary.BigEndian.Uint64(data[4:fileRecordHeaderLen]))
	return expiresAt, data[fileRecordHeaderLen:], nil
}
