package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"citysim/internal/persistence/indexdb"
	"citysim/internal/persistence/slots"
)

func openSlotStore(backend, cityDir string, archiveKeep int, log logrus.FieldLogger) (slots.Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "dir", "file":
		return slots.NewDirStore(filepath.Join(cityDir, "saves"), archiveKeep, log)
	case "badger":
		return slots.OpenBadger(filepath.Join(cityDir, "saves.badger"))
	case "memory":
		return slots.OpenBadger("")
	default:
		return nil, fmt.Errorf("unsupported save backend: %s", backend)
	}
}

func openIndex(backend, cityDir string) (*indexdb.SQLiteIndex, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		return indexdb.OpenSQLite(filepath.Join(cityDir, "index", "city.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", backend)
	}
}
