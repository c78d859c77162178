// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/metrics"
)

const (
	spoolPrefix    = "spool/"
	spoolBatchSize = 100
	spoolIdleWait  = time.Second
)

// SpoolConfig configures SpoolDispatcher.
type SpoolConfig struct {
	// Dir is the BadgerDB directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps the spool in memory (for testing).
	InMemory bool

	WriteTimeout time.Duration
}

// SpoolDispatcher queues records in BadgerDB so they survive a restart.
// Keys are UUIDv7 so iteration order follows enqueue order.
type SpoolDispatcher struct {
	db     *badger.DB
	writer *recordWriter
	notify chan struct{}

	mu     sync.RWMutex
	closed bool
}

// OpenSpoolDispatcher opens (or creates) the spool.
func OpenSpoolDispatcher(cfg SpoolConfig, store Store, side SideChannel) (*SpoolDispatcher, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("spool directory is required")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts.SyncWrites = false
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}

	logging.Info().Str("path", cfg.Dir).Bool("in_memory", cfg.InMemory).Msg("Log spool opened")

	return &SpoolDispatcher{
		db:     db,
		writer: newRecordWriter(store, side, cfg.WriteTimeout),
		notify: make(chan struct{}, 1),
	}, nil
}

// Name implements Dispatcher.
func (d *SpoolDispatcher) Name() string { return "spool" }

// Enqueue implements Dispatcher.
func (d *SpoolDispatcher) Enqueue(r *Record) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	key := []byte(spoolPrefix + id.String())

	if err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	}); err != nil {
		return fmt.Errorf("write to spool: %w", err)
	}

	select {
	case d.notify <- struct{}{}:
	default:
	}
	return nil
}

// Serve drains the spool until ctx is canceled.
func (d *SpoolDispatcher) Serve(ctx context.Context) error {
	for {
		n, err := d.drainBatch(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("Log spool drain failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n == spoolBatchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.notify:
		case <-time.After(spoolIdleWait):
		}
	}
}

type spoolItem struct {
	key     []byte
	payload []byte
}

// drainBatch writes up to spoolBatchSize records. Each key is deleted
// before its write so a record is attempted at most once.
func (d *SpoolDispatcher) drainBatch(ctx context.Context) (int, error) {
	items, err := d.readBatch()
	if err != nil {
		return 0, err
	}
	metrics.SetQueueDepth("spool", len(items))

	for _, item := range items {
		if err := d.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(item.key)
		}); err != nil {
			return 0, fmt.Errorf("delete spool entry: %w", err)
		}

		var r Record
		if err := json.Unmarshal(item.payload, &r); err != nil {
			metrics.RecordLogDropped("decode_failed")
			d.writer.side.Write(LevelError, "Failed to decode spooled log record", map[string]any{
				"key":   string(item.key),
				"error": err.Error(),
			})
			continue
		}
		d.writer.write(ctx, &r)
	}
	return len(items), nil
}

func (d *SpoolDispatcher) readBatch() ([]spoolItem, error) {
	items := make([]spoolItem, 0, spoolBatchSize)
	prefix := []byte(spoolPrefix)

	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(items) < spoolBatchSize; it.Next() {
			item := it.Item()
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, spoolItem{key: item.KeyCopy(nil), payload: payload})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read spool: %w", err)
	}
	return items, nil
}

// Pending counts spooled records.
func (d *SpoolDispatcher) Pending() (int, error) {
	count := 0
	prefix := []byte(spoolPrefix)
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close closes the underlying database. Records still spooled are kept
// for the next start.
func (d *SpoolDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close spool: %w", err)
	}
	return nil
}

// String implements fmt.Stringer for suture logging.
func (d *SpoolDispatcher) String() string {
	return "applog-spool-dispatcher"
}
