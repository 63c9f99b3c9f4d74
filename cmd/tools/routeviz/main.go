// Command routeviz renders two debug artifacts from a route-set JSON file:
// a static PNG elevation profile (gonum/plot, grounded on the donor's
// GridPlotter.generateRingPlot) and an interactive HTML polyline+elevation
// chart (go-echarts, grounded on the donor's handleBackgroundGridPolar).
// Both are purely diagnostic, mirroring the donor's debug-only monitor
// package rather than any rider-facing surface.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cycoholic/gotrackers/internal/route"
	"github.com/cycoholic/gotrackers/internal/security"
)

var (
	routesPath = flag.String("routes", "", "Path to a route-set JSON file (required)")
	outDir     = flag.String("out", "routeviz-out", "Output directory for generated artifacts")
)

func main() {
	flag.Parse()
	if *routesPath == "" {
		log.Fatal("-routes is required")
	}
	if err := security.ValidateExportPath(*routesPath); err != nil {
		log.Fatalf("-routes path rejected: %v", err)
	}

	inputs, err := route.LoadRouteInputs(*routesPath)
	if err != nil {
		log.Fatalf("failed to load routes: %v", err)
	}
	rs, err := route.NewRouteSet(inputs)
	if err != nil {
		log.Fatalf("failed to build route set: %v", err)
	}
	if rs.Empty() {
		log.Fatal("route set has no routes")
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	for i, r := range rs.Routes {
		label := "main"
		if !r.IsMain {
			label = fmt.Sprintf("alt-%d", i)
		}
		if len(r.Elevation) > 0 {
			if err := elevationProfilePNG(r, filepath.Join(*outDir, label+"_elevation.png")); err != nil {
				log.Fatalf("%s: elevation profile: %v", label, err)
			}
		}
		if err := routeMapHTML(r, filepath.Join(*outDir, label+"_map.html")); err != nil {
			log.Fatalf("%s: route map: %v", label, err)
		}
	}

	log.Printf("routeviz: wrote artifacts to %s", *outDir)
}

// elevationProfilePNG plots route elevation against along-route distance,
// following the donor's generateRingPlot shape (title/axis labels, a single
// plotter.Line series, Save at a fixed page size).
func elevationProfilePNG(r *route.Route, path string) error {
	p := plot.New()
	p.Title.Text = "Route elevation profile"
	p.X.Label.Text = "Distance (m)"
	p.Y.Label.Text = "Elevation (m)"

	pts := make(plotter.XYs, len(r.Elevation))
	for i, e := range r.Elevation {
		pts[i] = plotter.XY{X: e.AlongDistance, Y: e.Elev}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("elevation line: %w", err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)

	if err := p.Save(12*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// routeMapHTML renders the route's lat/lon polyline as an interactive
// go-echarts scatter, following the donor's handleBackgroundGridPolar shape
// (NewScatter + SetGlobalOptions + AddSeries + Render to a buffer).
func routeMapHTML(r *route.Route, path string) error {
	data := make([]opts.ScatterData, len(r.Points))
	minLon, maxLon := r.Points[0].Lon, r.Points[0].Lon
	minLat, maxLat := r.Points[0].Lat, r.Points[0].Lat
	for i, pt := range r.Points {
		data[i] = opts.ScatterData{Value: []interface{}{pt.Lon, pt.Lat, pt.Distance}}
		if pt.Lon < minLon {
			minLon = pt.Lon
		}
		if pt.Lon > maxLon {
			maxLon = pt.Lon
		}
		if pt.Lat < minLat {
			minLat = pt.Lat
		}
		if pt.Lat > maxLat {
			maxLat = pt.Lat
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Route map", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Route", Subtitle: fmt.Sprintf("points=%d", len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minLon, Max: maxLon, Name: "Longitude"}),
		charts.WithYAxisOpts(opts.YAxis{Min: minLat, Max: maxLat, Name: "Latitude"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        r.TotalDistance(),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("route", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
