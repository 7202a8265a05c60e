// Package store persists device settings and the decision journal in BadgerDB.
//
// Every change is written to the write-ahead log first and applied to badger
// second; on startup the log is replayed so badger can be rebuilt from it.
package store

import (
	stdErrors "errors"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/tokencore/core/dto"
	"github.com/vadiminshakov/tokencore/core/walrecord"
)

// ErrNotFound returned when key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// Store keeps the expert flag and the decision journal.
type Store struct {
	wal     *gowal.Wal
	db      *badger.DB
	mu      sync.RWMutex
	nextIdx uint64
}

// RecoveryState contains information extracted from WAL during startup.
type RecoveryState struct {
	// NextIndex is the WAL index the next record is written at.
	NextIndex uint64
	// Decisions is the number of journal records replayed.
	Decisions int
}

// OpenWAL opens the write-ahead log in dir.
func OpenWAL(dir string) (*gowal.Wal, error) {
	w, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "wal_",
		SegmentThreshold: 1024 * 1024,
		MaxSegments:      100,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open wal")
	}
	return w, nil
}

// New creates a new WAL-backed store and reconstructs state from WAL entries using BadgerDB.
func New(wal *gowal.Wal, dbPath string) (*Store, *RecoveryState, error) {
	if wal == nil {
		return nil, nil, errors.New("wal is nil")
	}
	if dbPath == "" {
		return nil, nil, errors.New("db path is empty")
	}

	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "create badger directory")
	}

	opts := badger.DefaultOptions(dbPath).WithLogger(log.StandardLogger())
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open badger db")
	}

	s := &Store{
		wal: wal,
		db:  db,
	}

	recovery, err := s.recover()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	s.nextIdx = recovery.NextIndex

	return s, recovery, nil
}

// SetExpert persists the expert mode flag.
func (s *Store) SetExpert(enabled bool) error {
	return s.append(walrecord.KeySetting, func(uint64) walrecord.WalTx {
		return walrecord.WalTx{
			Key:   walrecord.SettingExpert,
			Value: walrecord.EncodeBool(enabled),
		}
	})
}

// Expert returns the persisted expert flag, false if it was never set.
func (s *Store) Expert() (bool, error) {
	raw, err := s.get(walrecord.SettingExpert)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return walrecord.DecodeBool(raw)
}

// AppendDecision adds a finalized review to the journal.
func (s *Store) AppendDecision(d dto.Decision) error {
	value := walrecord.EncodeDecision(d)
	return s.append(walrecord.KeyDecision, func(idx uint64) walrecord.WalTx {
		return walrecord.WalTx{Key: walrecord.JournalKey(idx), Value: value}
	})
}

// Decisions returns the journal in write order.
func (s *Store) Decisions() ([]dto.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []dto.Decision
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(walrecord.JournalPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				d, err := walrecord.DecodeDecision(val)
				if err != nil {
					return errors.Wrapf(err, "decode %s", item.Key())
				}
				out = append(out, d)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})

	return out, err
}

// Close closes the underlying Badger database. The WAL belongs to the caller.
func (s *Store) Close() error {
	return s.db.Close()
}

// append builds the record for the next WAL index, writes it to the WAL
// under kind, then applies it. The index is reserved under the same lock.
func (s *Store) append(kind string, build func(idx uint64) walrecord.WalTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nextIdx
	tx := build(idx)
	if err := s.wal.Write(idx, kind, walrecord.Encode(tx)); err != nil {
		return errors.Wrap(err, "write wal")
	}
	s.nextIdx++

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tx.Key), cloneBytes(tx.Value))
	})
}

func (s *Store) get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if stdErrors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) recover() (*RecoveryState, error) {
	var (
		maxIndex   uint64
		hasEntries bool
		state      RecoveryState
	)

	for msg := range s.wal.Iterator() {
		if !hasEntries || msg.Idx > maxIndex {
			maxIndex = msg.Idx
		}
		hasEntries = true

		if msg.Key != walrecord.KeySetting && msg.Key != walrecord.KeyDecision {
			continue
		}

		tx, err := walrecord.Decode(msg.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "decode wal entry %d", msg.Idx)
		}
		if msg.Key == walrecord.KeyDecision {
			if !strings.HasPrefix(tx.Key, walrecord.JournalPrefix) {
				return nil, errors.Errorf("wal entry %d: journal key %q", msg.Idx, tx.Key)
			}
			state.Decisions++
		}

		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(tx.Key), tx.Value)
		}); err != nil {
			return nil, errors.Wrap(err, "apply wal entry")
		}
	}

	if hasEntries {
		state.NextIndex = maxIndex + 1
	}

	return &state, nil
}

func cloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}

	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
