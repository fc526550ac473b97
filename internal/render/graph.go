package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// NoGraphData is shown when a graph payload has nothing to plot.
const NoGraphData = "No data available"

const (
	chartWidth  = 800.0
	chartHeight = 384.0

	graphMarginTop    = 20.0
	graphMarginRight  = 30.0
	graphMarginBottom = 50.0
	graphMarginLeft   = 70.0

	lineStroke      = "#8884d8"
	lineStrokeWidth = 2
	dotRadius       = 4
	gridDash        = "3 3"
	yTickCount      = 5
)

// GraphPoint is one plotted row.
type GraphPoint struct {
	X, Y    float64
	Tooltip string
}

// Tick is an axis tick at a pixel position.
type Tick struct {
	Pos   float64
	Label string
}

// GraphLayout is a line chart resolved to pixel coordinates.
type GraphLayout struct {
	Width, Height float64
	Left, Top     float64
	Right, Bottom float64
	XAxis, YAxis  string
	Path          string
	Points        []GraphPoint
	XTicks        []Tick
	YTicks        []Tick
	Stroke        string
	StrokeWidth   int
	DotRadius     int
	GridDash      string
	Empty         bool
}

// LayoutGraph places the rows of g on a line chart. The x axis is
// categorical in row order and the y axis is numeric. Rows whose y value is
// missing or not numeric break the line.
func LayoutGraph(g models.GraphData) GraphLayout {
	l := GraphLayout{
		Width:       chartWidth,
		Height:      chartHeight,
		Left:        graphMarginLeft,
		Top:         graphMarginTop,
		Right:       chartWidth - graphMarginRight,
		Bottom:      chartHeight - graphMarginBottom,
		XAxis:       g.Config.XAxis,
		YAxis:       g.Config.YAxis,
		Stroke:      lineStroke,
		StrokeWidth: lineStrokeWidth,
		DotRadius:   dotRadius,
		GridDash:    gridDash,
	}
	if len(g.Data) == 0 || g.Config.XAxis == "" {
		l.Empty = true
		return l
	}

	values := make([]float64, len(g.Data))
	valid := make([]bool, len(g.Data))
	lo, hi := 0.0, 0.0
	seen := false
	for i, row := range g.Data {
		raw, ok := row.Get(g.Config.YAxis)
		if !ok {
			continue
		}
		v, err := models.AsFloat(raw)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values[i], valid[i] = v, true
		if !seen {
			lo, hi, seen = math.Min(0, v), math.Max(0, v), true
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	ticks := niceTicks(lo, hi, yTickCount)
	dmin, dmax := ticks[0], ticks[len(ticks)-1]
	yPos := func(v float64) float64 {
		return l.Bottom - (v/2-dmin/2)/(dmax/2-dmin/2)*(l.Bottom-l.Top)
	}
	for _, t := range ticks {
		l.YTicks = append(l.YTicks, Tick{Pos: yPos(t), Label: formatTick(t)})
	}

	var path strings.Builder
	pen := false
	for i, row := range g.Data {
		x := xPos(i, len(g.Data), l.Left, l.Right)
		label := ""
		if raw, ok := row.Get(g.Config.XAxis); ok {
			label = models.FormatValue(raw)
		}
		l.XTicks = append(l.XTicks, Tick{Pos: x, Label: label})
		if !valid[i] {
			pen = false
			continue
		}
		y := yPos(values[i])
		if pen {
			fmt.Fprintf(&path, " L%.1f,%.1f", x, y)
		} else {
			if path.Len() > 0 {
				path.WriteByte(' ')
			}
			fmt.Fprintf(&path, "M%.1f,%.1f", x, y)
			pen = true
		}
		l.Points = append(l.Points, GraphPoint{
			X:       x,
			Y:       y,
			Tooltip: fmt.Sprintf("%s\n%s : $%.2f", label, g.Config.YAxis, values[i]),
		})
	}
	l.Path = path.String()
	return l
}

// xPos spreads n categories across [left, right], centring a single one.
func xPos(i, n int, left, right float64) float64 {
	if n <= 1 {
		return (left + right) / 2
	}
	return left + float64(i)*(right-left)/float64(n-1)
}

// niceTicks returns evenly spaced round values covering [lo, hi]. When no
// finite step fits the range it returns the bare bounds.
func niceTicks(lo, hi float64, count int) []float64 {
	if hi <= lo {
		hi = lo + 1
	}
	// Halve before subtracting so spans near the float limit stay finite.
	step := niceNum((hi/2 - lo/2) / float64(count-1) * 2)
	start := math.Floor(lo/step) * step
	end := math.Ceil(hi/step) * step
	if !finite(step) || step <= 0 || !finite(start) || !finite(end) {
		return []float64{lo, hi}
	}
	var out []float64
	for v := start; v <= end+step/2 && len(out) <= 4*count; v += step {
		// Snap away float drift so labels stay round.
		out = append(out, math.Round(v/step)*step)
	}
	if len(out) < 2 {
		return []float64{lo, hi}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func niceNum(x float64) float64 {
	exp := math.Floor(math.Log10(x))
	f := x / math.Pow(10, exp)
	var nf float64
	switch {
	case f < 1.5:
		nf = 1
	case f < 3:
		nf = 2
	case f < 7:
		nf = 5
	default:
		nf = 10
	}
	return nf * math.Pow(10, exp)
}

func formatTick(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}
