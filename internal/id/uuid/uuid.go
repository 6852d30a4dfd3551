// Package uuid generates run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 identifiers so run directories and
// database rows sort by start time.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Bytes converts a run identifier to its 16-byte form. Identifiers that are
// not UUIDs (for example hand-picked names of resumed runs) hash into a
// stable name-based UUID.
func Bytes(id string) [16]byte {
	parsed, err := uuid.Parse(id)
	if err != nil {
		parsed = uuid.NewSHA1(uuid.NameSpaceURL, []byte("run:"+id))
	}
	return [16]byte(parsed)
}
