// Package engine implements the typing session state machine.
package engine

import "time"

const (
	// WPMWindow is the number of acceptance timestamps in the rolling WPM window.
	WPMWindow = 20
	// AccuracyWindow is the number of keystroke outcomes in the rolling accuracy window.
	AccuracyWindow = 50
)

// Milestones are streak lengths that fire a one-time event per session.
var Milestones = []int{25, 50, 100, 200, 500}

type rolling struct {
	stamps   []time.Time
	outcomes []bool
}

func (r *rolling) accept(at time.Time) {
	r.stamps = append(r.stamps, at)
	if len(r.stamps) > WPMWindow {
		r.stamps = r.stamps[len(r.stamps)-WPMWindow:]
	}
	r.outcome(true)
}

func (r *rolling) outcome(ok bool) {
	r.outcomes = append(r.outcomes, ok)
	if len(r.outcomes) > AccuracyWindow {
		r.outcomes = r.outcomes[len(r.outcomes)-AccuracyWindow:]
	}
}

func (r *rolling) reset() {
	r.stamps = nil
	r.outcomes = nil
}

// wpm is (window length - 1)/5 words over the minutes the window spans.
func (r *rolling) wpm() float64 {
	n := len(r.stamps)
	if n < 2 {
		return 0
	}
	minutes := r.stamps[n-1].Sub(r.stamps[0]).Minutes()
	if minutes <= 0 {
		return 0
	}
	return (float64(n-1) / 5.0) / minutes
}

// accuracy is the percentage of correct outcomes in the window.
func (r *rolling) accuracy() float64 {
	if len(r.outcomes) == 0 {
		return 100
	}
	ok := 0
	for _, o := range r.outcomes {
		if o {
			ok++
		}
	}
	return float64(ok) / float64(len(r.outcomes)) * 100
}

// SprintMetrics computes WPM and accuracy for a finished sprint. Accuracy is a
// fraction in [0, 1].
func SprintMetrics(chars, mistakes int, active time.Duration) (wpm, accuracy float64) {
	if entries := chars + mistakes; entries > 0 {
		accuracy = float64(chars) / float64(entries)
	}
	if minutes := active.Minutes(); minutes > 0 {
		wpm = (float64(chars) / 5.0) / minutes
	}
	return wpm, accuracy
}
