// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import "context"

// RecordListener is told about every record after it has been persisted.
// Implementations must not block.
type RecordListener interface {
	RecordPersisted(r *Record)
}

// NotifyingStore calls a listener after each successful insert. The live
// tail feed hangs off this.
type NotifyingStore struct {
	Store
	listener RecordListener
}

// NewNotifyingStore wraps store.
func NewNotifyingStore(store Store, listener RecordListener) *NotifyingStore {
	return &NotifyingStore{Store: store, listener: listener}
}

// Insert implements Store.
func (s *NotifyingStore) Insert(ctx context.Context, r *Record) error {
	if err := s.Store.Insert(ctx, r); err != nil {
		return err
	}
	if s.listener != nil {
		copied := *r
		s.listener.RecordPersisted(&copied)
	}
	return nil
}
