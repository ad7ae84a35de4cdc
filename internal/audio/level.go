package audio

import (
	"encoding/binary"
	"math"

	"pagemsg/internal/ports"
)

// LevelEvery is the number of captured chunks between level callbacks.
const LevelEvery = 150

// RMS returns the root-mean-square amplitude of S16LE samples.
func RMS(chunk []byte) float64 {
	n := len(chunk) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(chunk[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// FullScale is the largest S16 sample magnitude.
const FullScale = 32767

const meterFloorDB = -60.0

// MeterLevel maps an RMS amplitude onto [0,1] along a -60..0 dBFS scale.
func MeterLevel(rms float64) float64 {
	if rms <= 0 {
		return 0
	}
	db := 20 * math.Log10(rms/FullScale)
	level := (db - meterFloorDB) / -meterFloorDB
	return math.Max(0, math.Min(1, level))
}

type levelMeter struct {
	fn    ports.LevelFunc
	count int
}

func newLevelMeter(fn ports.LevelFunc) *levelMeter {
	return &levelMeter{fn: fn}
}

// observe counts a chunk and reports its RMS on every LevelEvery-th chunk.
func (m *levelMeter) observe(chunk []byte) {
	if m.fn == nil {
		return
	}
	m.count++
	if m.count%LevelEvery == 0 {
		m.fn(RMS(chunk))
	}
}
