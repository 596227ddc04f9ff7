// Package framestats tracks frame timing for the viewer's debug output.
package framestats

import "time"

// Stats counts frames and reports once per Interval.
type Stats struct {
	Interval time.Duration

	start      time.Time
	last       time.Time
	windowFrom time.Time
	window     int
	total      int

	// Delta is the duration of the most recent frame.
	Delta time.Duration
	// FPS is the frame rate over the last completed interval.
	FPS float64
	// AvgFPS is the frame rate since the first frame.
	AvgFPS float64
}

// New starts tracking at now.
func New(now time.Time, interval time.Duration) *Stats {
	if interval <= 0 {
		interval = time.Second
	}
	return &Stats{Interval: interval, start: now, last: now, windowFrom: now}
}

// Frame records a frame finishing at now. It returns true when an interval
// has elapsed and FPS was updated.
func (s *Stats) Frame(now time.Time) bool {
	s.Delta = now.Sub(s.last)
	s.last = now
	s.window++
	s.total++

	if elapsed := now.Sub(s.start); elapsed > 0 {
		s.AvgFPS = float64(s.total) / elapsed.Seconds()
	}

	elapsed := now.Sub(s.windowFrom)
	if elapsed < s.Interval {
		return false
	}
	s.FPS = float64(s.window) / elapsed.Seconds()
	s.window = 0
	s.windowFrom = now
	return true
}

// Total is the number of frames recorded.
func (s *Stats) Total() int { return s.total }
