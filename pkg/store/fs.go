package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// lastIDFile records the highest id a resource ever handed out so that
// deleting the newest entity does not make its id reusable.
const lastIDFile = ".last_id"

// FileStore keeps each entity in its own file, <root>/<resource>/<id>.
// A single mutex serializes all operations.
type FileStore struct {
	root string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) dir(resource string) (string, error) {
	if err := ValidateName(resource); err != nil {
		return "", err
	}
	return filepath.Join(s.root, resource), nil
}

func entityFile(dir string, id uint64) string {
	return filepath.Join(dir, strconv.FormatUint(id, 10))
}

func (s *FileStore) Create(_ context.Context, resource string, data []byte) (uint64, error) {
	dir, err := s.dir(resource)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create resource dir: %w", err)
	}
	ids, err := listIDs(dir)
	if err != nil {
		return 0, err
	}
	last, err := readLastID(dir)
	if err != nil {
		return 0, err
	}
	if n := len(ids); n > 0 && ids[n-1] > last {
		last = ids[n-1]
	}
	id := last + 1

	if err := writeFileAtomic(entityFile(dir, id), data); err != nil {
		return 0, err
	}
	if err := writeFileAtomic(filepath.Join(dir, lastIDFile), []byte(strconv.FormatUint(id, 10))); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *FileStore) Get(_ context.Context, resource string, id uint64) ([]byte, error) {
	dir, err := s.dir(resource)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(entityFile(dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read entity: %w", err)
	}
	return data, nil
}

func (s *FileStore) Put(_ context.Context, resource string, id uint64, data []byte) error {
	dir, err := s.dir(resource)
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("%w: id 0", ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create resource dir: %w", err)
	}
	return writeFileAtomic(entityFile(dir, id), data)
}

func (s *FileStore) Delete(_ context.Context, resource string, id uint64) error {
	dir, err := s.dir(resource)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(entityFile(dir, id)); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	last, err := readLastID(dir)
	if err != nil {
		return err
	}
	if id > last {
		return writeFileAtomic(filepath.Join(dir, lastIDFile), []byte(strconv.FormatUint(id, 10)))
	}
	return nil
}

func (s *FileStore) List(_ context.Context, resource string) ([]uint64, error) {
	dir, err := s.dir(resource)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return listIDs(dir)
}

func (s *FileStore) Close() error { return nil }

// listIDs returns the ids stored in dir, ascending. Files that are not
// decimal ids are skipped.
func listIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []uint64{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		id, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func readLastID(dir string) (uint64, error) {
	b, err := os.ReadFile(filepath.Join(dir, lastIDFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to read id counter: %w", err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt id counter in %s: %w", dir, err)
	}
	return id, nil
}

// writeFileAtomic replaces name with data via a temp file in the same dir.
func writeFileAtomic(name string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
