package slots

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"citysim/internal/persistence/archive"
	"citysim/internal/persistence/snapshot"
)

// DirStore keeps one `<name>.city` file per slot. Overwrites go through a
// temp file and rename; the previous file is archived first when ArchiveKeep > 0.
type DirStore struct {
	Dir         string
	ArchiveKeep int
	Log         logrus.FieldLogger
	Now         func() time.Time
}

func NewDirStore(dir string, archiveKeep int, log logrus.FieldLogger) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DirStore{Dir: dir, ArchiveKeep: archiveKeep, Log: log, Now: time.Now}, nil
}

func (s *DirStore) path(name string) string {
	return filepath.Join(s.Dir, name+snapshot.Ext)
}

func (s *DirStore) List() ([]string, error) {
	ents, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), snapshot.Ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), snapshot.Ext))
	}
	sort.Strings(names)
	return names, nil
}

func (s *DirStore) Stat(name string) (snapshot.Header, error) {
	if err := ValidateName(name); err != nil {
		return snapshot.Header{}, err
	}
	f, err := os.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot.Header{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return snapshot.Header{}, err
	}
	defer f.Close()
	hdr, err := snapshot.ReadHeader(f)
	if err != nil {
		return hdr, fmt.Errorf("%w: %q: %w", ErrCorrupt, name, err)
	}
	return hdr, nil
}

func (s *DirStore) Save(name string, save snapshot.SaveV1) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := snapshot.Encode(tmp, save); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	dst := s.path(name)
	if s.ArchiveKeep > 0 {
		if p, ok, err := archive.ArchivePrevious(s.Dir, name, dst, s.Now()); err != nil {
			s.Log.WithError(err).WithField("slot", name).Warn("archive previous save failed")
		} else if ok {
			s.Log.WithFields(logrus.Fields{"slot": name, "path": p}).Debug("previous save archived")
			if _, err := archive.Prune(s.Dir, name, s.ArchiveKeep); err != nil {
				s.Log.WithError(err).WithField("slot", name).Warn("archive prune failed")
			}
		}
	}
	return os.Rename(tmpPath, dst)
}

func (s *DirStore) Load(name string) (snapshot.SaveV1, error) {
	if err := ValidateName(name); err != nil {
		return snapshot.SaveV1{}, err
	}
	save, err := snapshot.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return save, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return save, fmt.Errorf("%w: %q: %w", ErrCorrupt, name, err)
	}
	return save, nil
}

func (s *DirStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return err
}

func (s *DirStore) Close() error { return nil }
