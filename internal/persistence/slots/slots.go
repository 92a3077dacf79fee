// Package slots stores named city saves.
package slots

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"citysim/internal/persistence/snapshot"
)

var (
	ErrNotFound = errors.New("save slot not found")
	ErrBadName  = errors.New("invalid save slot name")
	// ErrCorrupt is returned when stored bytes do not decode as a save.
	ErrCorrupt = errors.New("save slot corrupt")
)

// Store is a set of save slots keyed by city name. Save overwrites.
type Store interface {
	List() ([]string, error)
	Stat(name string) (snapshot.Header, error)
	Save(name string, save snapshot.SaveV1) error
	Load(name string) (snapshot.SaveV1, error)
	Delete(name string) error
	Close() error
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateName rejects names that cannot be used as a file or key safely.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

// AutosaveName is the slot autosaves of city are written to.
func AutosaveName(city string) string { return city + "-autosave" }
