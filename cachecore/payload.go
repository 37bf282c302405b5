package cachecore

import "time"

// Payload is a stored value plus its absolute expiry.
// The zero ExpiresAt means the payload never expires.
type Payload struct {
	Data      []byte
	ExpiresAt time.Time
}

// NewPayload stamps data with now+ttl.
func NewPayload(data []byte, ttl time.Duration, now time.Time) Payload {
	return Payload{Data: data, ExpiresAt: now.Add(ttl)}
}

// ForeverPayload wraps data with the never-expires sentinel.
func ForeverPayload(data []byte) Payload {
	return Payload{Data: data}
}

// Forever reports whether p carries the never-expires sentinel.
func (p Payload) Forever() bool {
	return p.ExpiresAt.IsZero()
}

// Expired reports whether p is past its expiry at now. The expiry instant
// itself counts as expired, so a zero ttl is an immediate miss.
func (p Payload) Expired(now time.Time) bool {
	if p.Forever() {
		return false
	}
	return !now.Before(p.ExpiresAt)
}

// ExpiresAtMillis returns the expiry as unix milliseconds, 0 for forever.
// Remote stores persist this form.
func (p Payload) ExpiresAtMillis() int64 {
	if p.Forever() {
		return 0
	}
	return p.ExpiresAt.UnixMilli()
}

// ExpiredAtMillis applies Payload.Expired to a persisted unix-millisecond
// expiry where 0 means forever.
func ExpiredAtMillis(expiresAt int64, now time.Time) bool {
	if expiresAt == 0 {
		return false
	}
	return now.UnixMilli() >= expiresAt
}
