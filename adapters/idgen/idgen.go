// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/artpar/cmskit/ports"
)

// UUID generates UUIDs for collections and items.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

// Alphabet is the character set of short IDs.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Short generates short URL-safe IDs with a fixed prefix, used for
// temporary upload IDs.
type Short struct {
	Prefix string
	Length int
}

// NewShort creates a short ID generator. Length defaults to 12.
func NewShort(prefix string, length int) Short {
	if length <= 0 {
		length = 12
	}
	return Short{Prefix: prefix, Length: length}
}

// New generates a new short ID. It falls back to a UUID if the random
// source fails.
func (s Short) New() string {
	id, err := nanoid.Generate(Alphabet, s.Length)
	if err != nil {
		return s.Prefix + uuid.New().String()
	}
	return s.Prefix + id
}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Reset resets the counter (for testing).
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = Short{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
