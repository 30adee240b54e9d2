package records

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pzverkov/quantum-vault/internal/constants"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

const (
	recordsBucket = "records"
	// byTimeBucket maps createdAt (8 bytes, big endian) || id to id.
	byTimeBucket = "by_time"

	openTimeout = time.Second
)

// BoltOption configures a BoltStore.
type BoltOption func(*BoltStore)

// WithTracer wraps every store operation in a span.
func WithTracer(t metrics.Tracer) BoltOption {
	return func(s *BoltStore) {
		if t != nil {
			s.tracer = t
		}
	}
}

// BoltStore is a Store backed by a single bbolt file.
type BoltStore struct {
	db     *bolt.DB
	tracer metrics.Tracer
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string, opts ...BoltOption) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.KeyDirMode); err != nil {
			return nil, fmt.Errorf("records: %w", err)
		}
	}

	db, err := bolt.Open(path, constants.KeyFileMode, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("records: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(byTimeBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("records: init %s: %w", path, err)
	}

	s := &BoltStore{db: db, tracer: metrics.NoOpTracer{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.db.Path()
}

func timeKey(createdAt time.Time, id string) []byte {
	k := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(createdAt.UnixNano()))
	return append(k, id...)
}

// Put implements Store.
func (s *BoltStore) Put(ctx context.Context, rec *Record) (err error) {
	_, end := s.tracer.StartSpan(ctx, metrics.SpanRecordPut)
	defer func() { end(err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	raw, err := Encode(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(recordsBucket))
		if bkt.Get([]byte(rec.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
		if err := bkt.Put([]byte(rec.ID), raw); err != nil {
			return err
		}
		return tx.Bucket([]byte(byTimeBucket)).Put(timeKey(rec.CreatedAt, rec.ID), []byte(rec.ID))
	})
}

// Get implements Store.
func (s *BoltStore) Get(ctx context.Context, id string) (rec *Record, err error) {
	_, end := s.tracer.StartSpan(ctx, metrics.SpanRecordGet,
		metrics.WithAttributes(metrics.SpanAttributes{RecordID: id}.ToMap()))
	defer func() { end(err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(recordsBucket)).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		// raw is only valid inside the transaction; Decode copies it.
		r, err := Decode(raw)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

// List implements Store.
func (s *BoltStore) List(ctx context.Context) (out []*Record, err error) {
	_, end := s.tracer.StartSpan(ctx, metrics.SpanRecordList)
	defer func() { end(err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = s.db.View(func(tx *bolt.Tx) error {
		recs := tx.Bucket([]byte(recordsBucket))
		c := tx.Bucket([]byte(byTimeBucket)).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			raw := recs.Get(id)
			if raw == nil {
				return fmt.Errorf("records: index entry for missing record %s", id)
			}
			r, err := Decode(raw)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Delete implements Store.
func (s *BoltStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(recordsBucket))
		raw := bkt.Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		r, err := Decode(raw)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(byTimeBucket)).Delete(timeKey(r.CreatedAt, id)); err != nil {
			return err
		}
		return bkt.Delete([]byte(id))
	})
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
