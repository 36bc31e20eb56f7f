package plugin

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	Ft "github.com/corveau/fermata/types"
)

// Key namespaces inside the one database:
// cfg: holds engine settings, ses: holds completed-session records
const (
	cfgPrefix = "cfg:"
	sesPrefix = "ses:"
)

type BadgerOutput struct {
	MU        sync.Mutex
	DB        *badger.DB
	BatchSize int
	Buffer    []*Ft.SessionRecord
}

func NewBadgerOutput(path string, batchSize int) (*BadgerOutput, error) {
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("BadgerOutput failed to open database", slog.Any("error", err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("BadgerOutput opened",
		slog.String("path", path),
		slog.Int("batchSize", batchSize))

	return &BadgerOutput{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*Ft.SessionRecord, 0, batchSize),
	}, nil
}

// Get reads one settings key from the cfg: namespace.
// A missing key surfaces as badger.ErrKeyNotFound,
// callers treat any error as "use the default"
func (bo *BadgerOutput) Get(key string) ([]byte, error) {
	var value []byte
	err := bo.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cfgPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Set writes one settings key into the cfg: namespace
func (bo *BadgerOutput) Set(key string, value []byte) error {
	err := bo.DB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cfgPrefix+key), value)
	})
	if err != nil {
		slog.Error("BadgerOutput failed to set key",
			slog.Any("error", err),
			slog.String("key", key))
		return fmt.Errorf("settings write error: %w", err)
	}
	return nil
}

// WriteSession queues up a batch of session records,
// when batchsize is reached, it calls Flush()
// which calls WriteBatch() with the new batch
func (bo *BadgerOutput) WriteSession(rec *Ft.SessionRecord) error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	bo.Buffer = append(bo.Buffer, rec)
	if len(bo.Buffer) >= bo.BatchSize {
		return bo.flushLocked() // private Flush that does not lock
	}
	return nil
}

// WriteBatch performs the key/value creation to be stored
// and actually calls BadgerDB to write the data
func (bo *BadgerOutput) WriteBatch(recs []*Ft.SessionRecord) error {
	wb := bo.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, rec := range recs {
		k := SessionKey(rec)
		v := SessionEncode(rec)
		if err := wb.Set(k, v); err != nil {
			slog.Error("BadgerOutput failed to set key in batch",
				slog.Any("error", err),
				slog.Time("completed", rec.Completed),
				slog.String("pattern", rec.Pattern))
			return fmt.Errorf("write batch error: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		slog.Error("BadgerOutput failed to flush batch", slog.Any("error", err))
		return fmt.Errorf("batch flush error: %w", err)
	}

	return nil
}

// Flush is the public method that blocks,
// it sends data to WriteBatch and then clears the buffer
func (bo *BadgerOutput) Flush() error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	if len(bo.Buffer) == 0 {
		return nil
	}

	err := bo.WriteBatch(bo.Buffer) // Delegate to WriteBatch
	bo.Buffer = bo.Buffer[:0]       // Clear but keep capacity
	return err
}

// flushLocked mimics Flush without locking, called by WriteSession
func (bo *BadgerOutput) flushLocked() error {
	err := bo.WriteBatch(bo.Buffer) // Delegate to WriteBatch
	bo.Buffer = bo.Buffer[:0]       // Clear but keep capacity
	return err
}

// Close returns a Flush error but still attempts to close
func (bo *BadgerOutput) Close() error {
	slog.Info("BadgerOutput closing, flushing buffer",
		slog.Int("bufferSize", len(bo.Buffer)))
	flushErr := bo.Flush()
	closeErr := bo.DB.Close()

	if flushErr != nil {
		slog.Error("BadgerOutput failed to flush on close", slog.Any("error", flushErr))
		return fmt.Errorf("flush failed, close may have failed: %v", flushErr)
	}

	if closeErr != nil {
		slog.Error("BadgerOutput failed to close database", slog.Any("error", closeErr))
		return fmt.Errorf("close failed: %v", closeErr)
	}

	slog.Info("BadgerOutput closed successfully")
	return nil
}

func (bo *BadgerOutput) Type() string { return "BadgerDB" }

// SessionKey creates a composite key
// namespace + timestamp + minutes + first five letters of pattern id
func SessionKey(rec *Ft.SessionRecord) []byte {
	key := make([]byte, 4+8+1+5)
	copy(key[0:4], sesPrefix)

	// Using positive BigEndian integer to convert timestamp
	// so keys can be sorted chronologically by BadgerDB
	binary.BigEndian.PutUint64(key[4:12], uint64(rec.Completed.UnixNano()))

	// Set Minutes
	key[12] = byte(rec.Minutes)

	// Keep pattern id at five chars
	if len(rec.Pattern) > 0 {
		pBytes := []byte(rec.Pattern)
		n := len(pBytes)
		if n > 5 {
			n = 5
		}
		copy(key[13:13+n], pBytes[:n])
	}

	return key
}

// SessionEncode serializes the session record struct for data storage
func SessionEncode(rec *Ft.SessionRecord) []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	enc.Encode(rec)
	return buf.Bytes()
}

// SessionDecode deserializes the session record data
func SessionDecode(data []byte) (*Ft.SessionRecord, error) {
	var rec Ft.SessionRecord
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	err := dec.Decode(&rec)
	return &rec, err
}

// QueryRange retrieves completed sessions within a time range
func (bo *BadgerOutput) QueryRange(start, end time.Time) ([]*Ft.SessionRecord, error) {
	var recs []*Ft.SessionRecord

	// db.View() callback
	// BadgerDB provides a transaction in which to get item.Value()
	err := bo.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sesPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			// item.Value() callback
			// BadgerDB passes bytes to the anon func
			err := item.Value(func(val []byte) error {
				rec, err := SessionDecode(val)
				if err != nil {
					slog.Error("BadgerOutput failed to decode session", slog.Any("error", err))
					return fmt.Errorf("session decode error: %w", err)
				}

				// Filter by time range
				if rec.Completed.After(start) && rec.Completed.Before(end) {
					recs = append(recs, rec)
				}

				return nil
			})
			if err != nil {
				slog.Error("BadgerOutput callback failure", slog.Any("error", err))
				return fmt.Errorf("item data error: %w", err)
			}
		}
		return nil
	})

	slog.Info("BadgerOutput QueryRange successful", slog.Int("count", len(recs)))

	return recs, err
}
