package series

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const fileExt = ".csv"

// FileStore keeps one CSV file per source under a directory. Rows are only
// ever appended; existing content is never rewritten.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore returns a store rooted at dir. The directory is created on the
// first append.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, locks: make(map[string]*sync.Mutex)}
}

func (s *FileStore) lockFor(sourceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sourceID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sourceID] = l
	}
	return l
}

func (s *FileStore) path(sourceID string) (string, error) {
	if err := ValidateSourceID(sourceID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, sourceID+fileExt), nil
}

// Append writes r as a new row and fsyncs the file before returning.
func (s *FileStore) Append(ctx context.Context, sourceID string, r Reading) error {
	if err := ctx.Err(); err != nil {
		return storeErr("append", sourceID, err)
	}
	path, err := s.path(sourceID)
	if err != nil {
		return storeErr("append", sourceID, err)
	}

	l := s.lockFor(sourceID)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return storeErr("append", sourceID, err)
	}
	if err := appendRow(path, r); err != nil {
		return storeErr("append", sourceID, err)
	}
	return nil
}

func appendRow(path string, r Reading) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	lay := canonicalLayout()
	if stat.Size() == 0 {
		if err := w.Write(lay.header); err != nil {
			return err
		}
	} else {
		header, err := csv.NewReader(io.NewSectionReader(f, 0, stat.Size())).Read()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if lay, err = parseLayout(header); err != nil {
			return err
		}
		var last [1]byte
		if _, err := f.ReadAt(last[:], stat.Size()-1); err != nil {
			return err
		}
		if last[0] != '\n' {
			if _, err := f.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
	}

	if err := w.Write(lay.encode(r)); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// Last returns the final row of the source's file.
func (s *FileStore) Last(ctx context.Context, sourceID string) (*Reading, error) {
	readings, err := s.read(ctx, "last", sourceID)
	if err != nil || len(readings) == 0 {
		return nil, err
	}
	last := readings[len(readings)-1]
	return &last, nil
}

// All returns every row of the source's file in file order.
func (s *FileStore) All(ctx context.Context, sourceID string) ([]Reading, error) {
	return s.read(ctx, "all", sourceID)
}

func (s *FileStore) read(ctx context.Context, op, sourceID string) ([]Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(op, sourceID, err)
	}
	path, err := s.path(sourceID)
	if err != nil {
		return nil, storeErr(op, sourceID, err)
	}

	l := s.lockFor(sourceID)
	l.Lock()
	defer l.Unlock()

	readings, err := readFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Reading{}, nil
	}
	if err != nil {
		return nil, storeErr(op, sourceID, err)
	}
	return readings, nil
}

func readFile(path string) ([]Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []Reading{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	lay, err := parseLayout(header)
	if err != nil {
		return nil, err
	}

	readings := make([]Reading, 0)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		reading, err := lay.decode(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

// Sources lists the files in the store directory that hold at least one row.
func (s *FileStore) Sources(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, storeErr("sources", "", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		id := strings.TrimSuffix(e.Name(), fileExt)
		readings, err := s.read(ctx, "sources", id)
		if err != nil {
			return nil, err
		}
		if len(readings) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
