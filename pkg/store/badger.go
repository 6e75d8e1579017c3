package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/apoxy-dev/webserver/pkg/log"
)

// Number of ids a sequence leases from the database at a time.
const seqBandwidth = 100

// BadgerStore keeps entities in a badger database under
// "entity/<resource>/<id>" with ids zero-padded so keys sort numerically.
// Ids come from a per-resource badger.Sequence, bumped past the resource's
// high-water mark ("hwm/<resource>") so an id once stored, by Create or Put,
// is never handed out again.
type BadgerStore struct {
	db *badger.DB

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

var _ Store = (*BadgerStore)(nil)

// OpenBadgerStore opens (or creates) the database in dir. An empty dir keeps
// everything in memory.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(log.BadgerLogger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerStore{
		db:   db,
		seqs: make(map[string]*badger.Sequence),
	}, nil
}

func resourcePrefix(resource string) []byte {
	return []byte("entity/" + resource + "/")
}

func entityKey(resource string, id uint64) []byte {
	return fmt.Appendf(resourcePrefix(resource), "%020d", id)
}

func highWaterKey(resource string) []byte {
	return []byte("hwm/" + resource)
}

// highWater returns the largest id ever stored for resource, 0 if none.
func highWater(txn *badger.Txn, resource string) (uint64, error) {
	item, err := txn.Get(highWaterKey(resource))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	var hwm uint64
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("malformed high-water mark for %s", resource)
		}
		hwm = binary.BigEndian.Uint64(v)
		return nil
	})
	return hwm, err
}

func setHighWater(txn *badger.Txn, resource string, id uint64) error {
	return txn.Set(highWaterKey(resource), binary.BigEndian.AppendUint64(nil, id))
}

func (s *BadgerStore) sequence(resource string) (*badger.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq, ok := s.seqs[resource]; ok {
		return seq, nil
	}
	seq, err := s.db.GetSequence([]byte("seq/"+resource), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("failed to get id sequence: %w", err)
	}
	s.seqs[resource] = seq
	return seq, nil
}

func (s *BadgerStore) Create(_ context.Context, resource string, data []byte) (uint64, error) {
	if err := ValidateName(resource); err != nil {
		return 0, err
	}
	seq, err := s.sequence(resource)
	if err != nil {
		return 0, err
	}
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}

	for {
		var id uint64
		err := s.db.Update(func(txn *badger.Txn) error {
			hwm, err := highWater(txn, resource)
			if err != nil {
				return err
			}
			// Sequences start at 0, and ids up to the high-water mark may
			// have been claimed by a Put.
			id = max(n+1, hwm+1)
			if err := setHighWater(txn, resource, id); err != nil {
				return err
			}
			return txn.Set(entityKey(resource, id), data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to save entity: %w", err)
		}
		return id, nil
	}
}

func (s *BadgerStore) Get(_ context.Context, resource string, id uint64) ([]byte, error) {
	if err := ValidateName(resource); err != nil {
		return nil, err
	}
	var data []byte
	if err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(resource, id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read entity: %w", err)
	}
	return data, nil
}

func (s *BadgerStore) Put(_ context.Context, resource string, id uint64, data []byte) error {
	if err := ValidateName(resource); err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("%w: id 0", ErrNotFound)
	}
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			hwm, err := highWater(txn, resource)
			if err != nil {
				return err
			}
			if id > hwm {
				if err := setHighWater(txn, resource, id); err != nil {
					return err
				}
			}
			return txn.Set(entityKey(resource, id), data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}
		return nil
	}
}

func (s *BadgerStore) Delete(_ context.Context, resource string, id uint64) error {
	if err := ValidateName(resource); err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		key := entityKey(resource, id)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return nil
}

func (s *BadgerStore) List(_ context.Context, resource string) ([]uint64, error) {
	if err := ValidateName(resource); err != nil {
		return nil, err
	}
	prefix := resourcePrefix(resource)
	ids := []uint64{}
	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			id, err := strconv.ParseUint(string(key[len(prefix):]), 10, 64)
			if err != nil {
				log.Warnf("skipping malformed entity key %q", key)
				continue
			}
			ids = append(ids, id)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return ids, nil
}

// Close returns unused leased ids and closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release sequence %s: %w", name, err))
		}
	}
	s.seqs = nil
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
