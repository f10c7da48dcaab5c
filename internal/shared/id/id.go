// Package id provides centralized ID generation for the backend.
//
// IDs are ULIDs with a short type prefix:
//   - Lexicographic sortability: creation order is preserved
//   - Prefixed types: pg_*, mount_*, req_* make logs readable
//   - Type safety: separate types prevent passing a mount id where a playground id is expected
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// PlaygroundID identifies a playground instance
type PlaygroundID string

// MountID identifies a render target; unique for the lifetime of the process
type MountID string

// RequestID identifies an API request or trace span
type RequestID string

// ============================================================================
// ID Prefixes
// ============================================================================

const (
	PlaygroundPrefix = "pg"
	MountPrefix      = "mount"
	RequestPrefix    = "req"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by a monotonic reader, so
// two IDs minted in the same millisecond still sort in creation order.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewPlaygroundID generates a new playground ID
func NewPlaygroundID() PlaygroundID {
	return PlaygroundID(Default().GenerateWithPrefix(PlaygroundPrefix))
}

// NewMountID generates a new render target ID
func NewMountID() MountID {
	return MountID(Default().GenerateWithPrefix(MountPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id PlaygroundID) String() string { return string(id) }
func (id MountID) String() string      { return string(id) }
func (id RequestID) String() string    { return string(id) }

// ============================================================================
// Validation
// ============================================================================

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// IsValidPrefixed checks that id has the form "<prefix>_<ULID>"
func IsValidPrefixed(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return false
	}
	return IsValid(rest)
}
