// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package protocol

import (
	"fmt"
	"math"
)

// ProgressTracker rate-limits chunk progress logging to one line per 20%
// (quintile) of completion: each of the first four quintiles logs when it is
// first reached, and the fifth is logged by the last chunk only, so a
// transfer of n chunks logs min(5, n) lines, matching format_chunk_progress
// in the original. One tracker is owned per in-flight
// transfer; it is not safe for concurrent use.
type ProgressTracker struct {
	lastQuintile int
}

// NewProgressTracker returns a tracker with no quintiles emitted yet.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{lastQuintile: -1}
}

// Update reports the current chunk position against total and returns a
// formatted progress line plus true when the quintile has advanced (or this
// is the final chunk); otherwise it returns ("", false) and the caller logs
// nothing. current/total use the same indexing convention as isZeroIndexed:
// when true, current is a 0-based index (so the "current chunk number" for
// display purposes is current+1); when false, current is already 1-based.
func (p *ProgressTracker) Update(current, total int, action string, isZeroIndexed bool) (string, bool) {
	if total <= 0 {
		return "", false
	}

	displayCurrent := current
	if isZeroIndexed {
		displayCurrent = current + 1
	}
	if displayCurrent > total {
		displayCurrent = total
	}

	quintile := divCeil(displayCurrent*5, total)
	isLast := displayCurrent >= total
	// The fifth quintile belongs to the final chunk alone, so a transfer
	// logs at most five lines and the last of them is always total/total.
	if quintile >= 5 && !isLast {
		quintile = 4
	}

	if quintile <= p.lastQuintile && !isLast {
		return "", false
	}
	p.lastQuintile = quintile

	pct := int(math.Round(float64(displayCurrent) / float64(total) * 100))
	return fmt.Sprintf("%s: %d/%d (%d%%)", action, displayCurrent, total, pct), true
}

// divCeil is integer ceiling division for non-negative a and positive b.
func divCeil(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
