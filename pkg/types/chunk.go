package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash"
)

// Chunk represents a bounded, ordered slice of a document's records
type Chunk struct {
	// Identification
	Index  int // 0-based position in the chunk sequence
	Format Format

	// Content
	Columns []string // Shared table header, repeated on every table chunk
	Keys    []string // Keys covered by a json-object chunk
	Records []Record

	// Location
	Offset      int // Index of the first record in the document
	RecordCount int
}

// Validate checks the chunk invariants
func (c *Chunk) Validate() error {
	if c.Index < 0 {
		return errors.New("chunk index must be non-negative")
	}

	if !c.Format.Valid() {
		return ErrUnsupportedFormat
	}

	if c.RecordCount != len(c.Records) {
		return errors.New("record count does not match records")
	}

	if c.Format == FormatJSONObject && len(c.Keys) != len(c.Records) {
		return errors.New("json-object chunk must list one key per record")
	}

	return nil
}

// ContentHash computes a SHA-256 hash over the chunk's records.
// Every field is length-prefixed so adjacent fields cannot run together.
func (c *Chunk) ContentHash() [32]byte {
	h := sha256.New()
	writeField(h, []byte(c.Format))
	writeUint(h, uint64(len(c.Columns)))
	for _, col := range c.Columns {
		writeField(h, []byte(col))
	}
	writeUint(h, uint64(len(c.Records)))
	for _, rec := range c.Records {
		writeField(h, []byte(rec.Key))
		writeField(h, []byte(rec.Line))
		writeField(h, rec.Value)
		writeUint(h, uint64(len(rec.Cells)))
		for _, cell := range rec.Cells {
			writeField(h, []byte(cell))
		}
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Fingerprint is the hex form of ContentHash
func (c *Chunk) Fingerprint() string {
	sum := c.ContentHash()
	return hex.EncodeToString(sum[:])
}

func writeField(h hash.Hash, b []byte) {
	writeUint(h, uint64(len(b)))
	h.Write(b)
}

func writeUint(h hash.Hash, n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	h.Write(buf[:])
}
