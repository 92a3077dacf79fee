package slots

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"citysim/internal/persistence/snapshot"
)

func sampleSave(day int) snapshot.SaveV1 {
	return snapshot.SaveV1{
		Header:    snapshot.Header{Version: snapshot.Version, CityName: "springfield", Day: day, SavedAt: "2026-01-01T00:00:00Z"},
		Day:       day,
		TimeScale: 1,
		Budget:    12345.5,
		Happiness: 50,
		Buildings: []snapshot.BuildingV1{
			{ID: "b1", Type: "SCHOOL", Rot: [4]float64{0, 0, 0, 1}, Condition: 80, Efficiency: 100, Operational: true},
		},
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	dir, err := NewDirStore(t.TempDir(), 2, logger)
	if err != nil {
		t.Fatalf("dir store: %v", err)
	}
	bs, err := OpenBadger("")
	if err != nil {
		t.Fatalf("badger store: %v", err)
	}
	t.Cleanup(func() { _ = bs.Close() })
	return map[string]Store{"dir": dir, "badger": bs}
}

func TestStore_SaveLoadListDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if got, err := s.List(); err != nil || len(got) != 0 {
				t.Fatalf("empty list: got %v err %v", got, err)
			}
			want := sampleSave(3)
			if err := s.Save("springfield", want); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := s.Save("shelbyville", sampleSave(1)); err != nil {
				t.Fatalf("save: %v", err)
			}

			got, err := s.Load("springfield")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("load mismatch:\n got=%+v\nwant=%+v", got, want)
			}

			names, err := s.List()
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if !reflect.DeepEqual(names, []string{"shelbyville", "springfield"}) {
				t.Fatalf("list: got %v", names)
			}

			hdr, err := s.Stat("springfield")
			if err != nil || hdr.Day != 3 {
				t.Fatalf("stat: got %+v err %v", hdr, err)
			}

			if err := s.Delete("springfield"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.Load("springfield"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("load after delete: got %v want ErrNotFound", err)
			}
			if err := s.Delete("springfield"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("second delete: got %v want ErrNotFound", err)
			}
		})
	}
}

func TestStore_OverwriteKeepsLatest(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for day := 1; day <= 4; day++ {
				if err := s.Save("springfield", sampleSave(day)); err != nil {
					t.Fatalf("save day %d: %v", day, err)
				}
			}
			got, err := s.Load("springfield")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.Day != 4 {
				t.Fatalf("day: got %d want 4", got.Day)
			}
		})
	}
}

func TestStore_RejectsBadNames(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "../etc", "a/b", ".hidden", "x..y"} {
				if err := s.Save(bad, sampleSave(1)); !errors.Is(err, ErrBadName) {
					t.Fatalf("save %q: got %v want ErrBadName", bad, err)
				}
				if _, err := s.Load(bad); !errors.Is(err, ErrBadName) {
					t.Fatalf("load %q: got %v want ErrBadName", bad, err)
				}
			}
		})
	}
}

func TestDirStore_ArchivesPreviousSave(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()
	s, err := NewDirStore(dir, 2, logger)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	for day := 1; day <= 4; day++ {
		if err := s.Save("springfield", sampleSave(day)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	ents, err := os.ReadDir(filepath.Join(dir, "archives", "springfield"))
	if err != nil {
		t.Fatalf("read archives: %v", err)
	}
	if len(ents) != 2 || ents[0].Name() != "day_00002" || ents[1].Name() != "day_00003" {
		t.Fatalf("archives: got %v", ents)
	}
	names, _ := s.List()
	if len(names) != 1 {
		t.Fatalf("archives leaked into list: %v", names)
	}
}

func TestDirStore_CorruptFile(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()
	s, err := NewDirStore(dir, 0, logger)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken"+snapshot.Ext), []byte("nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Load("broken"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("load: got %v want ErrCorrupt", err)
	}
}
