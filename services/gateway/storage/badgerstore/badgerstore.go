// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badgerstore persists gateway state in BadgerDB.
//
// BadgerDB gives the challenge store real transactional semantics: the
// consume check-and-flip runs inside a single Update transaction, so a
// replayed challenge cannot be redeemed twice even across concurrent
// requests. Challenges are additionally written with a TTL so expired
// entries fall out of the value log without an explicit sweeper.
//
// Key layout:
//
//	c/<challengeID>                      challenge JSON (TTL = expiry + grace)
//	a/<agentID>                          agent JSON
//	s/<agentID>/<padded-unixnano>-<rnd>  spot-check result JSON (append-only)
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
	"github.com/bottomfeed/gatekeeper/services/gateway/storage"
)

const (
	challengePrefix = "c/"
	agentPrefix     = "a/"
	spotCheckPrefix = "s/"

	// challengeTTLGrace keeps expired challenges readable slightly past
	// expiry so verification can report "expired" rather than "unknown".
	challengeTTLGrace = time.Minute

	// consumeRetries bounds retry attempts on transaction conflicts.
	consumeRetries = 3
)

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable synchronous writes.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk, no sync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements storage.ChallengeStore, storage.AgentDirectory, and
// storage.SpotCheckLog over one BadgerDB instance.
type Store struct {
	db *badger.DB
}

var (
	_ storage.ChallengeStore = (*Store)(nil)
	_ storage.AgentDirectory = (*Store)(nil)
	_ storage.SpotCheckLog   = (*Store)(nil)
)

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates and opens the store. Caller must Close when done.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs one round of value-log garbage collection. Call it
// periodically from a background loop; badger.ErrNoRewrite (nothing to
// collect) is not an error.
func (s *Store) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("badger value log gc: %w", err)
	}
	return nil
}

func challengeKey(id string) []byte { return []byte(challengePrefix + id) }
func agentKey(id string) []byte     { return []byte(agentPrefix + id) }

func spotCheckKey(agentID string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d-%s", spotCheckPrefix, agentID, ts.UnixNano(), uuid.NewString()[:8]))
}

// Put stores a challenge with a TTL slightly past its expiry.
func (s *Store) Put(_ context.Context, ch *datatypes.Challenge) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	ttl := time.Until(ch.ExpiresAt) + challengeTTLGrace
	if ttl <= 0 {
		ttl = challengeTTLGrace
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(challengeKey(ch.ID), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("store challenge %s: %w", ch.ID, err)
	}
	return nil
}

// Get returns the challenge, or storage.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (*datatypes.Challenge, error) {
	var ch datatypes.Challenge
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(challengeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ch)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge %s: %w", id, err)
	}
	return &ch, nil
}

// Consume atomically validates and redeems a challenge inside one Update
// transaction. On a transaction conflict (two concurrent redemptions)
// the losing transaction retries and then observes Consumed=true.
func (s *Store) Consume(_ context.Context, id string, check func(*datatypes.Challenge) error) (*datatypes.Challenge, error) {
	var (
		ch       datatypes.Challenge
		checkErr error
	)

	attempt := func() error {
		checkErr = nil
		return s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(challengeKey(id))
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			}); err != nil {
				return err
			}
			if ch.Consumed {
				checkErr = storage.ErrConsumed
				return nil
			}
			if err := check(&ch); err != nil {
				checkErr = err
				return nil
			}
			ch.Consumed = true
			data, err := json.Marshal(&ch)
			if err != nil {
				return err
			}
			ttl := time.Until(ch.ExpiresAt) + challengeTTLGrace
			if ttl <= 0 {
				ttl = challengeTTLGrace
			}
			return txn.SetEntry(badger.NewEntry(challengeKey(id), data).WithTTL(ttl))
		})
	}

	var err error
	for i := 0; i < consumeRetries; i++ {
		err = attempt()
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume challenge %s: %w", id, err)
	}
	return &ch, checkErr
}

// SweepExpired deletes challenges past expiry. TTLs already reclaim most
// of them; the sweep exists so metrics can report what was dropped.
func (s *Store) SweepExpired(_ context.Context, now time.Time) (int, error) {
	var expired [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(challengePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var ch datatypes.Challenge
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			}); err != nil {
				continue
			}
			if ch.Expired(now) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan challenges: %w", err)
	}

	dropped := 0
	for _, key := range expired {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err == nil {
			dropped++
		}
	}
	return dropped, nil
}

// GetAgent returns the agent, or storage.ErrNotFound.
func (s *Store) GetAgent(_ context.Context, id string) (*datatypes.Agent, error) {
	var agent datatypes.Agent
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(agentKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &agent)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", id, err)
	}
	return &agent, nil
}

// PutAgent creates or replaces an agent record.
func (s *Store) PutAgent(_ context.Context, agent *datatypes.Agent) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("marshal agent: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(agentKey(agent.ID), data)
	})
	if err != nil {
		return fmt.Errorf("store agent %s: %w", agent.ID, err)
	}
	return nil
}

// UpdateAgent applies fn to the stored agent inside one transaction,
// retrying on conflict.
func (s *Store) UpdateAgent(_ context.Context, id string, fn func(*datatypes.Agent) error) error {
	attempt := func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(agentKey(id))
			if err != nil {
				return err
			}
			var agent datatypes.Agent
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &agent)
			}); err != nil {
				return err
			}
			if err := fn(&agent); err != nil {
				return err
			}
			data, err := json.Marshal(&agent)
			if err != nil {
				return err
			}
			return txn.Set(agentKey(id), data)
		})
	}

	var err error
	for i := 0; i < consumeRetries; i++ {
		err = attempt()
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// ListVerified scans the agent prefix for verified agents.
func (s *Store) ListVerified(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(agentPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var agent datatypes.Agent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &agent)
			}); err != nil {
				continue
			}
			if agent.Verified {
				ids = append(ids, agent.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan agents: %w", err)
	}
	return ids, nil
}

// Append writes one spot-check result under a time-ordered key.
func (s *Store) Append(_ context.Context, result datatypes.SpotCheckResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal spot-check result: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(spotCheckKey(result.AgentID, result.Timestamp), data)
	})
	if err != nil {
		return fmt.Errorf("append spot-check result: %w", err)
	}
	return nil
}

// Recent returns results newer than since, oldest first, capped at
// limit (keeping the newest entries when trimming).
func (s *Store) Recent(_ context.Context, agentID string, since time.Time, limit int) ([]datatypes.SpotCheckResult, error) {
	var out []datatypes.SpotCheckResult
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(spotCheckPrefix + agentID + "/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var r datatypes.SpotCheckResult
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				continue
			}
			if r.Timestamp.After(since) {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan spot-check results: %w", err)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
