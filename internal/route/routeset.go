package route

import "fmt"

// RouteSet is a main route plus zero or more alternates, preprocessed
// together so each alternate's mapping back to the main distance frame is
// fixed at construction time (spec.md §4.3).
type RouteSet struct {
	Routes []*Route
}

// NewRouteSet preprocesses raws in order; the first becomes the main route,
// the rest become alternates mapped onto it (spec.md §4.3 "RouteSet").
func NewRouteSet(raws []RouteInput) (*RouteSet, error) {
	rs := &RouteSet{}
	if len(raws) == 0 {
		return rs, nil
	}

	main, err := Preprocess(raws[0], nil)
	if err != nil {
		return nil, fmt.Errorf("route set: main route: %w", err)
	}
	rs.Routes = append(rs.Routes, main)

	for i, raw := range raws[1:] {
		alt, err := Preprocess(raw, main)
		if err != nil {
			return nil, fmt.Errorf("route set: alternate route %d: %w", i, err)
		}
		rs.Routes = append(rs.Routes, alt)
	}

	return rs, nil
}

// Main returns the main route, or nil if the set is empty.
func (rs *RouteSet) Main() *Route {
	if len(rs.Routes) == 0 {
		return nil
	}
	return rs.Routes[0]
}

// Empty reports whether the set has no routes.
func (rs *RouteSet) Empty() bool {
	return len(rs.Routes) == 0
}
