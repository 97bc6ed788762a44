// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storyboard

import "time"

// RecomputeTiming returns a copy of shots with cumulative timing windows and
// UpdatedAt set to now. Zero durations are kept as zero-width windows; only
// the parser substitutes the default duration.
func RecomputeTiming(shots []Shot, now time.Time) []Shot {
	out := make([]Shot, len(shots))
	offset := 0.0
	for i, shot := range shots {
		shot.Timing = Timing{Start: offset, End: offset + shot.Duration}
		offset += shot.Duration
		shot.UpdatedAt = now
		out[i] = shot
	}
	return out
}

// Renumber returns a copy of shots with Number set to position+1.
func Renumber(shots []Shot) []Shot {
	out := make([]Shot, len(shots))
	for i, shot := range shots {
		shot.Number = i + 1
		out[i] = shot
	}
	return out
}

// TotalDuration is the end of the last shot, or 0 for an empty sequence.
func TotalDuration(shots []Shot) float64 {
	if len(shots) == 0 {
		return 0
	}
	return shots[len(shots)-1].Timing.End
}

// Reflow renumbers and retimes shots; it is the single path used after any
// change to order, membership or duration.
func Reflow(shots []Shot, now time.Time) []Shot {
	return RecomputeTiming(Renumber(shots), now)
}
