package city

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// Digest hashes State and every building in placement order. Two cities that
// went through the same operations produce the same digest.
func (c *City) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	s := c.state
	writeF64(h, &tmp, s.GameTime)
	writeU64(h, &tmp, uint64(s.Day))
	writeF64(h, &tmp, s.TimeScale)
	writeF64(h, &tmp, s.Budget)
	writeU64(h, &tmp, uint64(s.Population))
	writeF64(h, &tmp, s.Happiness)
	writeF64(h, &tmp, s.Coverage.Police)
	writeF64(h, &tmp, s.Coverage.Fire)
	writeF64(h, &tmp, s.Coverage.Education)
	writeF64(h, &tmp, s.Coverage.Healthcare)

	for _, b := range c.buildings {
		h.Write([]byte(b.ID))
		h.Write([]byte{0})
		h.Write([]byte(b.Kind))
		h.Write([]byte{0, boolByte(b.Operational)})
		writeF64(h, &tmp, b.Condition)
		writeF64(h, &tmp, b.Efficiency)
		switch {
		case b.Residential != nil:
			writeU64(h, &tmp, uint64(b.Residential.Residents))
		case b.Commercial != nil:
			writeU64(h, &tmp, uint64(b.Commercial.Workers))
		case b.Industrial != nil:
			writeU64(h, &tmp, uint64(b.Industrial.Workers))
			writeF64(h, &tmp, b.Industrial.Pollution)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeF64(h hash.Hash, tmp *[8]byte, v float64) {
	writeU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
