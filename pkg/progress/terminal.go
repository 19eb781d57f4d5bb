// Package progress renders harness.ProgressCallback notifications to a
// terminal, adapted from the
// pkg/analyzers/common/terminal bar-drawing helpers from a 0-10 analyzer
// score display to the harness's (phase, fraction, processed/total,
// chunk/totalChunks) progress tuple.
package progress

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/nosqlbench/vsmodel/pkg/harness"
)

// Bar drawing characters, matching the terminal package exactly.
const (
	filledChar = "█"
	emptyChar  = "░"
)

const percentMultiplier = 100

// drawBar renders a progress bar of the given width. value is clamped to
// [0, 1]. Example: drawBar(0.7, 10) returns "███████░░░".
func drawBar(value float64, width int) string {
	if value < 0 {
		value = 0
	}

	if value > 1 {
		value = 1
	}

	filled := int(value * float64(width))
	empty := width - filled

	return strings.Repeat(filledChar, filled) + strings.Repeat(emptyChar, empty)
}

// padRight pads s with spaces until it reaches width, or returns s unchanged
// if it is already at least that long.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}

	return s + strings.Repeat(" ", width-len(s))
}

const (
	defaultBarWidth   = 24
	defaultLabelWidth = 11
)

// Terminal renders progress updates as a single overwritten line, in the
// style of "PROCESSING  [████████████████░░░░░░░░]  67%  chunk 12/16  (850000/1164000 vectors)".
// The zero value is not usable; construct with NewTerminal.
type Terminal struct {
	mu         sync.Mutex
	w          io.Writer
	barWidth   int
	labelWidth int
	lastLine   int
}

// NewTerminal returns a Terminal that writes progress lines to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, barWidth: defaultBarWidth, labelWidth: defaultLabelWidth}
}

// Callback returns a harness.ProgressCallback bound to this Terminal.
func (t *Terminal) Callback() harness.ProgressCallback {
	return t.onProgress
}

func (t *Terminal) onProgress(phase harness.Phase, fraction float64, processed, total uint64, chunk, totalChunks int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	label := padRight(phase.String(), t.labelWidth)
	bar := drawBar(fraction, t.barWidth)
	pct := int(math.Round(fraction * percentMultiplier))

	var chunkPart string
	if totalChunks > 0 {
		chunkPart = fmt.Sprintf("chunk %d/%d  ", chunk, totalChunks)
	} else if chunk > 0 {
		chunkPart = fmt.Sprintf("chunk %d  ", chunk)
	}

	line := fmt.Sprintf("\r%s [%s] %3d%%  %s(%d/%d vectors)", label, bar, pct, chunkPart, processed, total)

	pad := t.lastLine - len(line)
	if pad > 0 {
		line += strings.Repeat(" ", pad)
	}

	t.lastLine = len(line)

	fmt.Fprint(t.w, line)

	if phase == harness.Completing && fraction >= 1 {
		fmt.Fprintln(t.w)
	}
}

// Noop is a harness.ProgressCallback that discards every update. Use it when
// the caller has no terminal (e.g. running under a supervisor or in tests).
func Noop(harness.Phase, float64, uint64, uint64, int, int) {}
