package pipeline

import "time"

// rescheduleInactivityTimer (re)starts the inactivity timer against the
// current last point-with-position, per spec.md §4.7: "the pipeline
// schedules a timer for (last_point.time + track_break_time) - now. [...]
// A new raw point arriving before the timer fires cancels the timer" -
// which this achieves simply by always restarting it after NewPoints.
func (p *Pipeline) rescheduleInactivityTimer() {
	p.mu.Lock()
	last := p.st.prevPoint
	p.mu.Unlock()

	if last == nil {
		return
	}

	p.timerMu.Lock()
	defer p.timerMu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timerGen++
	gen := p.timerGen

	delay := last.Time.Add(p.tuning.GetTrackBreakTime()).Sub(p.clock.Now())
	if delay < 0 {
		delay = 0
	}

	lastTime := last.Time
	p.timer = time.AfterFunc(delay, func() { p.fireInactivityTimer(gen, lastTime) })
}

// fireInactivityTimer injects a synthetic Inactive point if the last
// point-with-position is still the one that scheduled this firing (gen
// guards against a stale timer that was superseded by a newer point before
// it fired).
func (p *Pipeline) fireInactivityTimer(gen uint64, lastTime time.Time) {
	p.timerMu.Lock()
	if gen != p.timerGen {
		p.timerMu.Unlock()
		return
	}
	p.timerMu.Unlock()

	p.mu.Lock()
	if p.st.prevPoint == nil || !p.st.prevPoint.Time.Equal(lastTime) {
		p.mu.Unlock()
		return
	}
	synthetic := AnalyzedPoint{Time: lastTime.Add(p.tuning.GetTrackBreakTime())}
	changed := p.setStatus(&p.st, &synthetic, "Inactive")
	p.mu.Unlock()

	if changed {
		p.out.Publish([]AnalyzedPoint{synthetic})
	}
}

// stopTimer cancels any pending inactivity timer, e.g. on pipeline Stop.
func (p *Pipeline) stopTimer() {
	p.timerMu.Lock()
	defer p.timerMu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.timerGen++
}
