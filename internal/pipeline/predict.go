package pipeline

import (
	"time"

	"github.com/cycoholic/gotrackers/internal/predict"
)

// PredictPosition implements spec.md §4.8's PredictedPosition: "where is
// the rider right now?", extrapolated from the pipeline's current state.
// It declines to guess (returns ok=false) when the state is too stale, the
// rider already finished, or they were barely moving.
func (p *Pipeline) PredictPosition(now time.Time) (predict.PredictedPosition, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := &p.st
	if st.prevPoint == nil || st.finished {
		return predict.PredictedPosition{}, false
	}
	if now.Sub(st.prevPoint.Time) >= p.tuning.GetTrackBreakTime() {
		return predict.PredictedPosition{}, false
	}
	if st.prevPoint.SpeedKmh == nil || *st.prevPoint.SpeedKmh <= p.tuning.GetMinSpeedForFinishKmh() {
		return predict.PredictedPosition{}, false
	}

	onRoute := st.prevMatch != nil && st.prevMatch.DistanceToRoute < 500 &&
		st.goingForward != nil && *st.goingForward

	in := predict.Input{
		LastLat:           st.prevPoint.Lat,
		LastLon:           st.prevPoint.Lon,
		SpeedMetersPerSec: *st.prevPoint.SpeedKmh / 3.6,
		LastTime:          st.prevPoint.Time,
		OnRoute:           onRoute,
		PrevUnitVector:    st.prevUnitVector,
	}
	if onRoute {
		in.LastAlongRouteDist = st.prevMatch.AlongRouteDistance
		in.LastRouteIndex = st.prevMatch.RouteIndex
	}
	if st.prevPointGeo != nil {
		in.PrevPV = st.prevPointGeo.PV()
	}

	return predict.Predict(p.routes, in, now)
}
