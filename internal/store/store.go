// Package store owns the durable marker collection: a flat CSV file replaced
// atomically on every write, plus the persisted log-broadcast flag.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"meshmap/telegram-bot/internal/model"
)

// fieldNames is the on-disk column order. The companion web map reads this
// file directly, so the header must stay stable.
var fieldNames = []string{"lat", "lon", "name", "desc", "node_type", "frequency", "link", "ID", "user", "timestamp"}

const bom = "\ufeff"

// Store mediates every access to the backing file. Mutations run through
// Update, which holds the store lock across the whole read-modify-write so
// commits from interleaved flows cannot lose each other's changes.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open prepares a store backed by the file at path, creating parent
// directories as needed. The file itself is created lazily on first write.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// ReadAll loads every marker from the backing file. An absent file yields an
// empty collection. Rows missing lat, lon, or owner ID are dropped silently;
// an empty display name is replaced with the anonymous sentinel.
func (s *Store) ReadAll() ([]model.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAllLocked()
}

func (s *Store) readAllLocked() ([]model.Marker, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open markers file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read markers header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var markers []model.Marker
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read markers row: %w", err)
		}

		rawLat := field(row, "lat")
		rawLon := field(row, "lon")
		ownerID := field(row, "ID")
		if rawLat == "" || rawLon == "" || ownerID == "" {
			continue
		}
		lat, latErr := strconv.ParseFloat(rawLat, 64)
		lon, lonErr := strconv.ParseFloat(rawLon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		owner := field(row, "user")
		if owner == "" {
			owner = model.AnonymousName
		}

		ts, _ := strconv.ParseInt(field(row, "timestamp"), 10, 64)

		markers = append(markers, model.Marker{
			Lat:       lat,
			Lon:       lon,
			Name:      field(row, "name"),
			Desc:      field(row, "desc"),
			NodeType:  field(row, "node_type"),
			Frequency: field(row, "frequency"),
			Link:      field(row, "link"),
			OwnerID:   model.OwnerID(ownerID),
			Owner:     owner,
			Timestamp: ts,
		})
	}

	return markers, nil
}

// WriteAll serializes the full collection to a temporary file in the same
// directory and atomically renames it over the backing file, so any reader
// sees either the old complete file or the new one.
func (s *Store) WriteAll(markers []model.Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAllLocked(markers)
}

func (s *Store) writeAllLocked(markers []model.Marker) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".markers-*.csv")
	if err != nil {
		return fmt.Errorf("create temp markers file: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeCSV(tmp, markers); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp markers file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace markers file: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, markers []model.Marker) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write markers bom: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(fieldNames); err != nil {
		return fmt.Errorf("write markers header: %w", err)
	}
	for _, m := range markers {
		row := []string{
			strconv.FormatFloat(m.Lat, 'f', -1, 64),
			strconv.FormatFloat(m.Lon, 'f', -1, 64),
			m.Name,
			m.Desc,
			m.NodeType,
			m.Frequency,
			m.Link,
			string(m.OwnerID),
			m.Owner,
			strconv.FormatInt(m.Timestamp, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write markers row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush markers file: %w", err)
	}
	return nil
}

// Update applies fn to the current collection and persists the result. The
// lock is held for the whole read-modify-write, which serializes commits from
// independent flows. If fn returns an error nothing is written.
func (s *Store) Update(fn func(markers []model.Marker) ([]model.Marker, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers, err := s.readAllLocked()
	if err != nil {
		return err
	}
	updated, err := fn(markers)
	if err != nil {
		return err
	}
	return s.writeAllLocked(updated)
}

// ListByOwner returns the owner's markers in file order.
func (s *Store) ListByOwner(owner model.OwnerID) ([]model.Marker, error) {
	markers, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	var own []model.Marker
	for _, m := range markers {
		if m.OwnerID == owner {
			own = append(own, m)
		}
	}
	return own, nil
}

// ExportRaw returns the backing file bytes as stored on disk. An absent file
// exports as an empty dataset rather than an error.
func (s *Store) ExportRaw() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		var b strings.Builder
		if err := writeCSV(&b, nil); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read markers file: %w", err)
	}
	return data, nil
}
