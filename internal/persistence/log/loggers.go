package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"citysim/internal/sim/city"
)

// JSONLZstdWriter appends JSON lines to zstd files rotated per UTC date.
// Each reopen appends a new zstd frame; readers see one continuous stream.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curDate string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format("2006-01-02")
	if date != w.curDate {
		if err := w.rotateLocked(date); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(date string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	p := w.pathForDate(date)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curDate = date
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curDate = ""
	return err1
}

func (w *JSONLZstdWriter) pathForDate(date string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, date))
}

// DayLogger writes one JSONL entry per daily pass. It satisfies city.DaySink.
type DayLogger struct{ w *JSONLZstdWriter }

func NewDayLogger(cityDir string) *DayLogger {
	return &DayLogger{w: NewJSONLZstdWriter(filepath.Join(cityDir, "days"), "days")}
}

func (l *DayLogger) WriteDay(r city.DayReport) error { return l.w.Write(r) }
func (l *DayLogger) Close() error                    { return l.w.Close() }

// ReadDays decodes every report in the day log files under cityDir, oldest file first.
func ReadDays(cityDir string) ([]city.DayReport, error) {
	paths, err := filepath.Glob(filepath.Join(cityDir, "days", "days-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var out []city.DayReport
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		reps, err := decodeDays(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, reps...)
	}
	return out, nil
}

func decodeDays(r io.Reader) ([]city.DayReport, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []city.DayReport
	jd := json.NewDecoder(dec)
	for {
		var rep city.DayReport
		if err := jd.Decode(&rep); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, rep)
	}
}
