package scoring

import (
	"math"
	"sort"
)

// MaxRawScore is the number of questions in a full listening or reading test.
const MaxRawScore = 40

// BandTable converts raw correct-answer counts to a 0–9 band score.
// Keys are the lowest raw score that earns the band; counts between keys
// take the band of the nearest lower key.
type BandTable struct {
	keys  []int
	bands map[int]float64
}

// NewBandTable builds a table from raw→band steps. A 0 key is always present.
func NewBandTable(steps map[int]float64) *BandTable {
	bands := make(map[int]float64, len(steps)+1)
	for k, v := range steps {
		bands[k] = v
	}
	if _, ok := bands[0]; !ok {
		bands[0] = 0
	}
	keys := make([]int, 0, len(bands))
	for k := range bands {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return &BandTable{keys: keys, bands: bands}
}

// Band returns the band for a raw count, clamped to [0, MaxRawScore].
func (t *BandTable) Band(raw int) float64 {
	if raw < 0 {
		raw = 0
	}
	if raw > MaxRawScore {
		raw = MaxRawScore
	}
	// index of the first key greater than raw; the one before it is the floor
	i := sort.SearchInts(t.keys, raw+1)
	return t.bands[t.keys[i-1]]
}

// StandardBandTable is shared by listening and reading. Every half band from
// 0 to 9 is reachable.
var StandardBandTable = NewBandTable(map[int]float64{
	0:  0,
	1:  0.5,
	2:  1.0,
	3:  1.5,
	4:  2.0,
	5:  2.5,
	6:  3.0,
	8:  3.5,
	10: 4.0,
	13: 4.5,
	16: 5.0,
	18: 5.5,
	23: 6.0,
	26: 6.5,
	30: 7.0,
	32: 7.5,
	35: 8.0,
	37: 8.5,
	39: 9.0,
})

// RoundToHalf rounds to the nearest 0.5.
func RoundToHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

// CombineWritingBands weights Task 2 twice as heavily as Task 1.
func CombineWritingBands(task1, task2 float64) float64 {
	return RoundToHalf((task1 + 2*task2) / 3)
}

// ValidBand reports whether v is on the 0–9 half-band scale.
func ValidBand(v float64) bool {
	if v < 0 || v > 9 || math.IsNaN(v) {
		return false
	}
	return v*2 == math.Trunc(v*2)
}
