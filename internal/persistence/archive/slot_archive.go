package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"citysim/internal/persistence/snapshot"
)

type SlotArchiveMeta struct {
	Slot       string `json:"slot"`
	CityName   string `json:"city_name"`
	Day        int    `json:"day"`
	SavedAt    string `json:"saved_at"`
	Snapshot   string `json:"snapshot"`
	ArchivedAt string `json:"archived_at"`
}

// ArchivePrevious copies the save currently at slotPath into
// `baseDir/archives/<slot>/day_<NNNNN>/` before it is overwritten. It returns
// archived=false when there is nothing to archive yet.
func ArchivePrevious(baseDir, slot, slotPath string, now time.Time) (archivedPath string, archived bool, err error) {
	f, err := os.Open(slotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	hdr, err := snapshot.ReadHeader(f)
	_ = f.Close()
	if err != nil {
		return "", false, fmt.Errorf("archive %s: %w", slot, err)
	}

	archiveDir := filepath.Join(baseDir, "archives", slot, fmt.Sprintf("day_%05d", hdr.Day))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}
	dst := filepath.Join(archiveDir, filepath.Base(slotPath))
	if err := copyFile(slotPath, dst); err != nil {
		return "", false, err
	}

	meta := SlotArchiveMeta{
		Slot:       slot,
		CityName:   hdr.CityName,
		Day:        hdr.Day,
		SavedAt:    hdr.SavedAt,
		Snapshot:   filepath.Base(dst),
		ArchivedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}
	return dst, true, nil
}

// Prune keeps the newest keep archives of slot, ordered by day.
func Prune(baseDir, slot string, keep int) (removed int, err error) {
	if keep <= 0 {
		return 0, nil
	}
	dir := filepath.Join(baseDir, "archives", slot)
	ents, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	type dayDir struct {
		name string
		day  int
	}
	var days []dayDir
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		day, ok := parseDayDir(e.Name())
		if !ok {
			continue
		}
		days = append(days, dayDir{name: e.Name(), day: day})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].day < days[j].day })
	for len(days) > keep {
		if err := os.RemoveAll(filepath.Join(dir, days[0].name)); err != nil {
			return removed, err
		}
		days = days[1:]
		removed++
	}
	return removed, nil
}

// parseDayDir reads the day out of a `day_<N>` directory name. The zero
// padding is only cosmetic; days past 99999 get more digits.
func parseDayDir(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "day_")
	if !ok {
		return 0, false
	}
	day, err := strconv.Atoi(rest)
	if err != nil || day < 0 {
		return 0, false
	}
	return day, true
}

// List returns the archive metadata of slot, oldest day first. Entries
// without a readable meta.json are skipped.
func List(baseDir, slot string) ([]SlotArchiveMeta, error) {
	dir := filepath.Join(baseDir, "archives", slot)
	ents, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []SlotArchiveMeta
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var m SlotArchiveMeta
		if json.Unmarshal(b, &m) != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
