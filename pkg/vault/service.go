package vault

import (
	"context"
	"time"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/generator"
	"github.com/pzverkov/quantum-vault/pkg/records"
	"github.com/pzverkov/quantum-vault/pkg/strength"
)

// Item is the listing view of a record. It carries no cipher material.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	HasCipher bool      `json:"has_cipher"`
}

// Generated is a candidate secret together with its score.
type Generated struct {
	Password string         `json:"password"`
	Score    strength.Score `json:"score"`
}

// Service stores and reveals items through an Engine and a records.Store.
type Service struct {
	engine  *Engine
	records records.Store
	source  generator.Source
}

// NewService wires an engine to a record store. A nil source selects the
// built-in generator.
func NewService(engine *Engine, store records.Store, source generator.Source) *Service {
	if source == nil {
		source = generator.New()
	}
	return &Service{engine: engine, records: store, source: source}
}

// Engine returns the underlying engine.
func (s *Service) Engine() *Engine { return s.engine }

// Put seals plaintext and stores it under title, returning the record id.
func (s *Service) Put(ctx context.Context, title string, plaintext []byte) (string, error) {
	rec, err := s.engine.Encrypt(ctx, title, plaintext)
	if err != nil {
		return "", err
	}
	if err := s.records.Put(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// List returns every item, newest first.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	recs, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(recs))
	for i, r := range recs {
		items[i] = Item{
			ID:        r.ID,
			Title:     r.Title,
			CreatedAt: r.CreatedAt,
			HasCipher: len(r.Ciphertext) > 0 || len(r.Tag) > 0,
		}
	}
	return items, nil
}

// Reveal decrypts the record with the given id. A missing id yields an error
// matching records.ErrNotFound; any cryptographic failure yields a
// *errors.VaultError.
func (s *Service) Reveal(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.Decrypt(ctx, rec)
}

// Delete removes the record with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.records.Delete(ctx, id)
}

// Generate produces a candidate from the service's source and scores it.
func (s *Service) Generate(req generator.Request) (*Generated, error) {
	return GenerateCandidate(s.source, req)
}

// GenerateCandidate produces a candidate from source and scores it. It needs
// no keys, so callers without a vault can use it directly.
func GenerateCandidate(source generator.Source, req generator.Request) (*Generated, error) {
	if req.Mode == "" {
		return nil, qerrors.ErrInvalidStrengthInput
	}
	pw, err := source.Generate(req)
	if err != nil {
		return nil, err
	}
	return &Generated{Password: pw, Score: ScoreCandidate(pw)}, nil
}
