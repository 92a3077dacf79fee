package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// Ext is the file extension used for save slots on disk.
const Ext = ".city"

var ErrUnsupportedVersion = errors.New("unsupported save version")

type Header struct {
	Version  int    `json:"version"`
	CityName string `json:"city_name"`
	Day      int    `json:"day"`
	SavedAt  string `json:"saved_at"`
}

type SaveV1 struct {
	Header Header `json:"header"`

	GameTime  float64 `json:"game_time"`
	Day       int     `json:"day"`
	TimeScale float64 `json:"time_scale"`

	Budget     float64 `json:"budget"`
	Population int     `json:"population"`
	Happiness  float64 `json:"happiness"`

	PoliceCoverage     float64 `json:"police_coverage"`
	FireCoverage       float64 `json:"fire_coverage"`
	EducationCoverage  float64 `json:"education_coverage"`
	HealthcareCoverage float64 `json:"healthcare_coverage"`

	Buildings []BuildingV1 `json:"buildings"`
}

// BuildingV1 carries only the shared building record. Variant fields
// (residents, workers, pollution, ...) are recomputed after load.
type BuildingV1 struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type"`
	Pos         [3]float64 `json:"pos"`
	Rot         [4]float64 `json:"rot"`
	Condition   float64    `json:"condition"`
	Efficiency  float64    `json:"efficiency"`
	Operational bool       `json:"operational"`
}

// Encode writes a JSON header line followed by the gob-encoded save, zstd compressed.
func Encode(w io.Writer, save SaveV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, err := json.Marshal(save.Header)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&save); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func Decode(r io.Reader) (SaveV1, error) {
	var save SaveV1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return save, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return save, fmt.Errorf("read header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(line, &hdr); err != nil {
		return save, fmt.Errorf("header: %w", err)
	}
	if hdr.Version != Version {
		return save, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}

	if err := gob.NewDecoder(br).Decode(&save); err != nil {
		return save, fmt.Errorf("gob decode: %w", err)
	}
	return save, nil
}

// ReadHeader decodes only the header line, for listings that do not need the body.
func ReadHeader(r io.Reader) (Header, error) {
	var hdr Header
	dec, err := zstd.NewReader(r)
	if err != nil {
		return hdr, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return hdr, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return hdr, fmt.Errorf("header: %w", err)
	}
	return hdr, nil
}

func WriteFile(path string, save SaveV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, save); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ReadFile(path string) (SaveV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return SaveV1{}, err
	}
	defer f.Close()
	return Decode(f)
}
