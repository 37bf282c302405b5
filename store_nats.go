package memocache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goforj/memocache/cachecore"
	"github.com/nats-io/nats.go"
)

const natsEnvelopeMarker = "memo-v1"

// NATSKeyValue captures the subset of nats.KeyValue used by the store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Purge(key string, opts ...nats.DeleteOpt) error
}

// natsStore keeps entries in a JetStream key-value bucket. Unless bucketTTL is
// set, each value is wrapped in an envelope carrying its own expiry because
// JetStream KV has no per-key TTL.
type natsStore struct {
	kv        NATSKeyValue
	prefix    string
	bucketTTL bool
	now       Clock
}

type natsEnvelope struct {
	Marker    string `json:"m"`
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"ea"`
}

func newNATSStore(kv NATSKeyValue, prefix string, bucketTTL bool, clock Clock) Store {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	if clock == nil {
		clock = cachecore.SystemClock
	}
	return &natsStore{
		kv:        kv,
		prefix:    prefix,
		bucketTTL: bucketTTL,
		now:       clock,
	}
}

func (s *natsStore) Driver() Driver { return DriverNATS }

func (s *natsStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.kv == nil {
		return s.unavailable("set", key)
	}
	if ttl <= 0 {
		_, err := s.Delete(ctx, key)
		return err
	}
	return s.put("set", key, cachecore.NewPayload(value, ttl, s.now()))
}

func (s *natsStore) Forever(_ context.Context, key string, value []byte) error {
	if s.kv == nil {
		return s.unavailable("forever", key)
	}
	return s.put("forever", key, cachecore.ForeverPayload(value))
}

func (s *natsStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.kv == nil {
		return nil, false, s.unavailable("get", key)
	}
	value, ok, err := s.read("get", key)
	if err != nil || !ok {
		return nil, false, err
	}
	return value, true, nil
}

func (s *natsStore) Has(_ context.Context, key string) (bool, error) {
	if s.kv == nil {
		return false, s.unavailable("has", key)
	}
	_, ok, err := s.read("has", key)
	return ok, err
}

func (s *natsStore) Delete(_ context.Context, key string) (bool, error) {
	if s.kv == nil {
		return false, s.unavailable("delete", key)
	}
	_, live, err := s.read("delete", key)
	if err != nil {
		return false, err
	}
	if err := s.kv.Purge(s.cacheKey(key)); err != nil && !isNATSMiss(err) {
		return false, s.wrap("delete", key, err)
	}
	return live, nil
}

func (s *natsStore) put(op, key string, payload cachecore.Payload) error {
	body := cloneBytes(payload.Data)
	if !s.bucketTTL {
		envelope := natsEnvelope{
			Marker:    natsEnvelopeMarker,
			Value:     payload.Data,
			ExpiresAt: payload.ExpiresAtMillis(),
		}
		var err error
		body, err = json.Marshal(envelope)
		if err != nil {
			return s.wrap(op, key, fmt.Errorf("marshal nats envelope: %w", err))
		}
	}
	_, err := s.kv.Put(s.cacheKey(key), body)
	return s.wrap(op, key, err)
}

// read returns the live value for key, purging it when the envelope has expired.
func (s *natsStore) read(op, key string) ([]byte, bool, error) {
	cacheKey := s.cacheKey(key)
	entry, err := s.kv.Get(cacheKey)
	if isNATSMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap(op, key, err)
	}
	if entry.Operation() == nats.KeyValueDelete || entry.Operation() == nats.KeyValuePurge {
		return nil, false, nil
	}
	if s.bucketTTL {
		return cloneBytes(entry.Value()), true, nil
	}
	envelope, wrapped, err := decodeNATSEnvelope(entry.Value())
	if err != nil {
		return nil, false, s.wrap(op, key, err)
	}
	if !wrapped {
		return cloneBytes(entry.Value()), true, nil
	}
	if cachecore.ExpiredAtMillis(envelope.ExpiresAt, s.now()) {
		_ = s.kv.Purge(cacheKey)
		return nil, false, nil
	}
	return cloneBytes(envelope.Value), true, nil
}

func (s *natsStore) cacheKey(key string) string {
	return "p." + encodeNATSKeyPart(s.prefix) + ".k." + encodeNATSKeyPart(key)
}

func (s *natsStore) wrap(op, key string, err error) error {
	return cachecore.WrapStoreError(DriverNATS, op, key, err)
}

func (s *natsStore) unavailable(op, key string) error {
	return s.wrap(op, key, ErrStoreUnavailable)
}

func decodeNATSEnvelope(body []byte) (natsEnvelope, bool, error) {
	var envelope natsEnvelope
	if len(body) == 0 || body[0] != '{' {
		return envelope, false, nil
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return natsEnvelope{}, false, fmt.Errorf("decode nats envelope: %w", err)
	}
	if envelope.Marker != natsEnvelopeMarker {
		return natsEnvelope{}, false, nil
	}
	return envelope, true, nil
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

// encodeNATSKeyPart maps arbitrary text onto the KV key alphabet.
func encodeNATSKeyPart(part string) string {
	if part == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(part))
}
