package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"meshmap/telegram-bot/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "data", "markers.csv"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func sampleMarker(owner, name string) model.Marker {
	return model.Marker{
		Lat:       45.4642,
		Lon:       9.19,
		Name:      name,
		Desc:      "test node",
		NodeType:  model.DefaultNodeType,
		Frequency: "433 MHz",
		Link:      "https://example.com",
		OwnerID:   model.OwnerID(owner),
		Owner:     "tester",
		Timestamp: 1700000000,
	}
}

func TestReadAllMissingFile(t *testing.T) {
	s := newTestStore(t)

	markers, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(markers) != 0 {
		t.Fatalf("expected empty collection, got %d markers", len(markers))
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	want := []model.Marker{
		sampleMarker("42", "Tower1"),
		sampleMarker("43", "Hill, north \"A\""),
	}
	want[1].Link = ""

	if err := s.WriteAll(want); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d markers, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("marker %d mismatch:\n got  %+v\n want %+v", i, got[i], want[i])
		}
	}
}

func TestWriteEmitsBOMAndHeader(t *testing.T) {
	s := newTestStore(t)

	if err := s.WriteAll(nil); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read backing file: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "\ufeff") {
		t.Fatalf("expected file to start with BOM")
	}
	if !strings.Contains(text, "lat,lon,name,desc,node_type,frequency,link,ID,user,timestamp") {
		t.Fatalf("unexpected header: %q", text)
	}
}

func TestReadDropsCorruptRows(t *testing.T) {
	s := newTestStore(t)

	raw := "\ufefflat,lon,name,desc,node_type,frequency,link,ID,user,timestamp\n" +
		"45.0,9.0,Good,,MeshCore,433 MHz,,42,tester,1700000000\n" +
		"45.0,,NoLon,,MeshCore,433 MHz,,42,tester,1700000000\n" +
		",9.0,NoLat,,MeshCore,433 MHz,,42,tester,1700000000\n" +
		"45.0,9.0,NoOwner,,MeshCore,433 MHz,,,tester,1700000000\n" +
		"north,9.0,BadLat,,MeshCore,433 MHz,,42,tester,1700000000\n" +
		"45.1,9.1,NoUser,,MeshCore,868 MHz,,43,,1700000000\n"
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatalf("seed backing file: %v", err)
	}

	markers, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(markers) != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", len(markers))
	}
	if markers[0].Name != "Good" {
		t.Fatalf("expected first survivor Good, got %q", markers[0].Name)
	}
	if markers[1].Name != "NoUser" || markers[1].Owner != model.AnonymousName {
		t.Fatalf("expected anonymous fallback, got %+v", markers[1])
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)

	if err := s.WriteAll([]model.Marker{sampleMarker("42", "Tower1")}); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatalf("read data dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "markers.csv" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only markers.csv, got %v", names)
	}
}

func TestUpdateSerializesWriters(t *testing.T) {
	s := newTestStore(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Update(func(markers []model.Marker) ([]model.Marker, error) {
				m := sampleMarker("42", "Node"+string(rune('A'+i)))
				return append(markers, m), nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	markers, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(markers) != writers {
		t.Fatalf("lost updates: expected %d markers, got %d", writers, len(markers))
	}
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	s := newTestStore(t)

	if err := s.WriteAll([]model.Marker{sampleMarker("42", "Tower1")}); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	wantErr := os.ErrInvalid
	err := s.Update(func(markers []model.Marker) ([]model.Marker, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("expected update error to propagate, got %v", err)
	}

	markers, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(markers) != 1 {
		t.Fatalf("expected collection untouched, got %d markers", len(markers))
	}
}

func TestListByOwner(t *testing.T) {
	s := newTestStore(t)

	all := []model.Marker{
		sampleMarker("42", "A"),
		sampleMarker("43", "B"),
		sampleMarker("42", "C"),
	}
	if err := s.WriteAll(all); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	own, err := s.ListByOwner("42")
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(own) != 2 || own[0].Name != "A" || own[1].Name != "C" {
		t.Fatalf("unexpected owner listing: %+v", own)
	}
}

func TestExportRawMissingFile(t *testing.T) {
	s := newTestStore(t)

	data, err := s.ExportRaw()
	if err != nil {
		t.Fatalf("ExportRaw failed: %v", err)
	}
	if !strings.Contains(string(data), "lat,lon,name") {
		t.Fatalf("expected header-only export, got %q", data)
	}
}

func TestLogStateDefaultsAndToggles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log_state.json")
	ls := OpenLogState(path)

	if !ls.Enabled() {
		t.Fatalf("expected missing file to default to enabled")
	}

	if err := ls.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if ls.Enabled() {
		t.Fatalf("expected disabled after toggle")
	}

	// A fresh handle must observe the persisted value.
	if OpenLogState(path).Enabled() {
		t.Fatalf("expected persisted disabled state")
	}

	if err := ls.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if !ls.Enabled() {
		t.Fatalf("expected enabled after second toggle")
	}
}

func TestLogStateTreatsPartialFileAsEnabled(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty_object": `{}`,
		"other_keys":   `{"version": 2}`,
		"not_json":     `enabled`,
	}
	for name, content := range cases {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if !OpenLogState(path).Enabled() {
			t.Fatalf("%s: expected fallback to enabled", name)
		}
	}
}
