package stats

import (
	"fmt"
	"math"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// MinHistogramBins is the lowest bin count a Histogram accepts.
const MinHistogramBins = 10

// Histogram is an adaptive streaming histogram whose bounds expand as
// out-of-range values arrive, redistributing existing counts into the new
// bin layout by mapping each old bin's center into the new bounds.
type Histogram struct {
	numBins     int
	min, max    float64
	counts      []uint64
	initialized bool
}

// NewHistogram builds an empty histogram with the given bin count, which
// must be at least MinHistogramBins.
func NewHistogram(numBins int) (*Histogram, error) {
	if numBins < MinHistogramBins {
		return nil, fmt.Errorf("stats: histogram needs >= %d bins, got %d: %w",
			MinHistogramBins, numBins, vserrors.ErrInvalidConfig)
	}

	return &Histogram{numBins: numBins, counts: make([]uint64, numBins)}, nil
}

func (h *Histogram) width() float64 {
	return (h.max - h.min) / float64(h.numBins)
}

func (h *Histogram) binIndex(x float64) int {
	w := h.width()
	if w <= 0 {
		return 0
	}

	idx := int((x - h.min) / w)
	if idx < 0 {
		idx = 0
	}

	if idx >= h.numBins {
		idx = h.numBins - 1
	}

	return idx
}

// Accept folds a new value into the histogram, expanding bounds and
// redistributing existing counts first if x falls outside them.
func (h *Histogram) Accept(x float64) {
	if !h.initialized {
		h.min = x - 0.5
		h.max = x + 0.5
		h.initialized = true
	} else if x < h.min || x > h.max {
		newMin := math.Min(x, h.min)
		newMax := math.Max(x, h.max)
		margin := 0.1 * (newMax - newMin)
		h.redistribute(newMin-margin, newMax+margin)
	}

	h.counts[h.binIndex(x)]++
}

func (h *Histogram) redistribute(newMin, newMax float64) {
	oldWidth := h.width()

	newCounts := make([]uint64, h.numBins)

	for i, c := range h.counts {
		if c == 0 {
			continue
		}

		center := h.min + (float64(i)+0.5)*oldWidth

		idx := int((center - newMin) / ((newMax - newMin) / float64(h.numBins)))
		if idx < 0 {
			idx = 0
		}

		if idx >= h.numBins {
			idx = h.numBins - 1
		}

		newCounts[idx] += c
	}

	h.min, h.max = newMin, newMax
	h.counts = newCounts
}

// Counts returns a copy of the current bin counts.
func (h *Histogram) Counts() []uint64 {
	out := make([]uint64, len(h.counts))
	copy(out, h.counts)

	return out
}

// Bounds returns the histogram's current [min, max).
func (h *Histogram) Bounds() (float64, float64) { return h.min, h.max }

// Peak is a detected local maximum in the smoothed bin counts.
type Peak struct {
	Bin        int
	Height     float64
	Prominence float64
}

func smoothCentered(values []uint64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	half := window / 2

	for i := 0; i < n; i++ {
		lo := i - half
		if lo < 0 {
			lo = 0
		}

		hi := i + half
		if hi > n-1 {
			hi = n - 1
		}

		var sum float64

		for j := lo; j <= hi; j++ {
			sum += float64(values[j])
		}

		out[i] = sum / float64(hi-lo+1)
	}

	return out
}

func localMaxima(smoothed []float64) []int {
	n := len(smoothed)

	var out []int

	for i := 0; i < n; i++ {
		leftOK := i == 0 || smoothed[i] > smoothed[i-1]
		rightOK := i == n-1 || smoothed[i] > smoothed[i+1]

		if leftOK && rightOK {
			out = append(out, i)
		}
	}

	return out
}

func localMinima(smoothed []float64) []int {
	n := len(smoothed)

	var out []int

	for i := 0; i < n; i++ {
		leftOK := i == 0 || smoothed[i] < smoothed[i-1]
		rightOK := i == n-1 || smoothed[i] < smoothed[i+1]

		if leftOK && rightOK {
			out = append(out, i)
		}
	}

	return out
}

// prominence measures how far the peak at i stands above the higher of its
// two flanking valleys, each the lowest smoothed value between i and the
// nearest point on that side taller than i (or the series edge).
func prominence(smoothed []float64, i int) float64 {
	height := smoothed[i]

	leftValley := height
	for j := i - 1; j >= 0; j-- {
		if smoothed[j] > height {
			break
		}

		if smoothed[j] < leftValley {
			leftValley = smoothed[j]
		}
	}

	rightValley := height
	for j := i + 1; j < len(smoothed); j++ {
		if smoothed[j] > height {
			break
		}

		if smoothed[j] < rightValley {
			rightValley = smoothed[j]
		}
	}

	valley := leftValley
	if rightValley > valley {
		valley = rightValley
	}

	return height - valley
}

func maxFloat(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}

	return m
}

// FindModes smooths the counts with a centered window of 3 and returns the
// local maxima whose prominence is at least prominenceThreshold times the
// smoothed maximum.
func (h *Histogram) FindModes(prominenceThreshold float64) []Peak {
	smoothed := smoothCentered(h.counts, 3)
	maxS := maxFloat(smoothed)

	if maxS <= 0 {
		return nil
	}

	var peaks []Peak

	for _, i := range localMaxima(smoothed) {
		p := prominence(smoothed, i)
		if p >= prominenceThreshold*maxS {
			peaks = append(peaks, Peak{Bin: i, Height: smoothed[i], Prominence: p})
		}
	}

	return peaks
}

// Gap is a detected significant valley between two modes.
type Gap struct {
	ValleyBin       int
	LeftBin         int
	RightBin        int
	ContrastRatio   float64
}

// GapAnalysis smooths with a width-5 window, then reports valleys whose
// height falls below 0.4 of the smaller of their two flanking peaks.
func (h *Histogram) GapAnalysis(prominenceThreshold float64) []Gap {
	smoothed := smoothCentered(h.counts, 5)
	n := len(smoothed)
	maxS := maxFloat(smoothed)

	if maxS <= 0 {
		return nil
	}

	var peaks []int

	for _, i := range localMaxima(smoothed) {
		if smoothed[i] > prominenceThreshold*maxS {
			peaks = append(peaks, i)
		}
	}

	if len(peaks) < 2 {
		return nil
	}

	var gaps []Gap

	for _, v := range localMinima(smoothed) {
		if smoothed[v] >= 0.5*maxS {
			continue
		}

		leftPeak, ok1 := nearestBelow(peaks, v)
		rightPeak, ok2 := nearestAbove(peaks, v)

		if !ok1 || !ok2 {
			continue
		}

		neighborMin := math.Min(smoothed[leftPeak], smoothed[rightPeak])
		if neighborMin <= 0 {
			continue
		}

		ratio := smoothed[v] / neighborMin
		if ratio >= 0.4 {
			continue
		}

		threshold := 0.5 * neighborMin

		left := v
		for left > 0 && smoothed[left] <= threshold {
			left--
		}

		right := v
		for right < n-1 && smoothed[right] <= threshold {
			right++
		}

		gaps = append(gaps, Gap{ValleyBin: v, LeftBin: left, RightBin: right, ContrastRatio: ratio})
	}

	return gaps
}

func nearestBelow(sorted []int, x int) (int, bool) {
	best := -1

	for _, v := range sorted {
		if v < x && v > best {
			best = v
		}
	}

	return best, best >= 0
}

func nearestAbove(sorted []int, x int) (int, bool) {
	best := -1

	for _, v := range sorted {
		if v > x && (best == -1 || v < best) {
			best = v
		}
	}

	return best, best != -1
}

// IsMultiModal reports whether the histogram shows more than one mode, or
// a significant gap, at the given threshold.
func (h *Histogram) IsMultiModal(threshold float64) bool {
	if len(h.FindModes(threshold)) > 1 {
		return true
	}

	return len(h.GapAnalysis(threshold)) > 0
}
