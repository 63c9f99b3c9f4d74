package pipeline

import "gonum.org/v1/gonum/stat"

// rollingSpeedStats keeps a fixed-size window of recent speed_kmh samples
// and reports their mean/stddev, supplementing the analyzed-point stream
// with a smoothed speed signal the original distillation didn't compute
// (SPEC_FULL.md domain-stack enrichment via gonum/stat, a sibling of the
// gonum/spatial/r3 package internal/geo already uses).
type rollingSpeedStats struct {
	window []float64
	size   int
	next   int
	filled bool
}

func newRollingSpeedStats(size int) *rollingSpeedStats {
	return &rollingSpeedStats{window: make([]float64, size), size: size}
}

func (s *rollingSpeedStats) push(v float64) {
	s.window[s.next] = v
	s.next = (s.next + 1) % s.size
	if s.next == 0 {
		s.filled = true
	}
}

// MeanStdDev returns the rolling mean and standard deviation of the last
// window of speed samples, or ok=false if no sample has been pushed yet.
func (s *rollingSpeedStats) MeanStdDev() (mean, stddev float64, ok bool) {
	n := s.size
	if !s.filled {
		n = s.next
	}
	if n == 0 {
		return 0, 0, false
	}
	mean, stddev = stat.MeanStdDev(s.window[:n], nil)
	return mean, stddev, true
}

// SpeedStats exposes the pipeline's rolling speed mean/stddev, e.g. for a
// live dashboard or an off-route-severity heuristic.
func (p *Pipeline) SpeedStats() (mean, stddev float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed.MeanStdDev()
}
