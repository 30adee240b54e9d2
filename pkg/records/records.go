// Package records persists sealed vault records.
//
// A Record holds only what is needed to reopen it with the vault's secret
// key: the KEM ciphertext, AEAD nonce, tag and ciphertext, plus a title and
// creation time. Plaintext and shared secrets are never stored.
//
// Two Store implementations are provided: BoltStore, an embedded bbolt
// database with CBOR-encoded values, and MemoryStore for tests and
// ephemeral sessions. Both list records newest first.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// ErrNotFound is returned when a record id is not present.
var ErrNotFound = qerrors.ErrNotFound

// ErrDuplicateID is returned by Put when a record with the same id exists.
// Records are immutable once stored.
var ErrDuplicateID = errors.New("records: duplicate id")

// Record is a sealed vault item.
type Record struct {
	ID            string
	Title         string
	KEMCiphertext []byte
	Nonce         []byte
	Tag           []byte
	Ciphertext    []byte
	CreatedAt     time.Time

	// Scheme names the KEM provider that produced KEMCiphertext.
	Scheme string
	// Suite is the AEAD suite label used to seal Ciphertext.
	Suite string
	// TitleBound is set when Title was authenticated as associated data.
	TitleBound bool
}

// Store is the record storage collaborator.
type Store interface {
	// Put stores rec. An empty rec.ID is filled with a fresh identifier.
	Put(ctx context.Context, rec *Record) error

	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns every record, newest first.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes a record. Deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	Close() error
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.KEMCiphertext = clone(r.KEMCiphertext)
	c.Nonce = clone(r.Nonce)
	c.Tag = clone(r.Tag)
	c.Ciphertext = clone(r.Ciphertext)
	return &c
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// wireRecord is the on-disk form of a Record.
type wireRecord struct {
	Version       uint16 `cbor:"1,keyasint"`
	ID            string `cbor:"2,keyasint"`
	Title         string `cbor:"3,keyasint"`
	KEMCiphertext []byte `cbor:"4,keyasint"`
	Nonce         []byte `cbor:"5,keyasint"`
	Tag           []byte `cbor:"6,keyasint"`
	Ciphertext    []byte `cbor:"7,keyasint"`
	CreatedAt     int64  `cbor:"8,keyasint"`
	Scheme        string `cbor:"9,keyasint"`
	Suite         string `cbor:"10,keyasint"`
	TitleBound    bool   `cbor:"11,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	decOpts := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  4,
		MaxArrayElements: 16,
		MaxMapPairs:      16,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(err)
	}
}

// Encode serializes rec in the deterministic CBOR record format.
func Encode(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("records: nil record")
	}
	return encMode.Marshal(&wireRecord{
		Version:       constants.FormatVersion,
		ID:            rec.ID,
		Title:         rec.Title,
		KEMCiphertext: rec.KEMCiphertext,
		Nonce:         rec.Nonce,
		Tag:           rec.Tag,
		Ciphertext:    rec.Ciphertext,
		CreatedAt:     rec.CreatedAt.UnixNano(),
		Scheme:        rec.Scheme,
		Suite:         rec.Suite,
		TitleBound:    rec.TitleBound,
	})
}

// Decode parses a record produced by Encode.
func Decode(b []byte) (*Record, error) {
	var w wireRecord
	if err := decMode.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("records: decode: %w", err)
	}
	if w.Version != constants.FormatVersion {
		return nil, fmt.Errorf("records: unsupported format version %d", w.Version)
	}
	if w.ID == "" {
		return nil, errors.New("records: decode: missing id")
	}
	return &Record{
		ID:            w.ID,
		Title:         w.Title,
		KEMCiphertext: w.KEMCiphertext,
		Nonce:         w.Nonce,
		Tag:           w.Tag,
		Ciphertext:    w.Ciphertext,
		CreatedAt:     time.Unix(0, w.CreatedAt).UTC(),
		Scheme:        w.Scheme,
		Suite:         w.Suite,
		TitleBound:    w.TitleBound,
	}, nil
}

// newer orders records newest first, breaking ties by id.
func newer(a, b *Record) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}
