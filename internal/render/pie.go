package render

import (
	"fmt"
	"math"
	"strconv"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// NoPieData is shown when a pie payload has no slices.
const NoPieData = "No data available for the pie chart"

// Palette colours pie slices by index modulo its length.
var Palette = []string{"#0088FE", "#00C49F", "#FFBB28", "#FF8042", "#AF19FF"}

const (
	pieRadius      = 150.0
	pieLabelOffset = 20.0
)

// PaletteColor returns the slice colour for index i.
func PaletteColor(i int) string {
	return Palette[i%len(Palette)]
}

// PieShape is one slice resolved to SVG geometry.
type PieShape struct {
	Path    string
	Full    bool
	Color   string
	Text    string
	LabelX  float64
	LabelY  float64
	Anchor  string
	Tooltip string
}

// LegendItem pairs a slice label with its colour.
type LegendItem struct {
	Label string
	Color string
}

// PieLayout is a pie chart resolved to pixel coordinates.
type PieLayout struct {
	Width, Height float64
	CX, CY, R     float64
	Shapes        []PieShape
	Legend        []LegendItem
	Empty         bool
}

// LayoutPie sizes each slice by its share of the total. Slices are drawn
// counter-clockwise from three o'clock. Non-positive values get no area but
// keep their legend entry and colour.
func LayoutPie(p models.PieData) PieLayout {
	l := PieLayout{
		Width:  chartWidth,
		Height: chartHeight,
		CX:     chartWidth / 2,
		CY:     chartHeight / 2,
		R:      pieRadius,
	}
	if len(p.Data) == 0 {
		l.Empty = true
		return l
	}

	total := 0.0
	for _, s := range p.Data {
		if s.Value > 0 {
			total += s.Value
		}
	}

	angle := 0.0
	for i, s := range p.Data {
		color := PaletteColor(i)
		l.Legend = append(l.Legend, LegendItem{Label: s.Label, Color: color})
		if total == 0 || s.Value <= 0 {
			continue
		}
		value := strconv.FormatFloat(s.Value, 'f', -1, 64)
		sweep := s.Value / total * 2 * math.Pi
		mid := angle + sweep/2
		lx, ly := l.point(mid, l.R+pieLabelOffset)
		shape := PieShape{
			Color:   color,
			Text:    fmt.Sprintf("%s: %s", s.Label, value),
			LabelX:  lx,
			LabelY:  ly,
			Anchor:  "start",
			Tooltip: fmt.Sprintf("%s: %s", s.Label, value),
		}
		if math.Cos(mid) < 0 {
			shape.Anchor = "end"
		}
		if sweep >= 2*math.Pi-1e-9 {
			shape.Full = true
		} else {
			x0, y0 := l.point(angle, l.R)
			x1, y1 := l.point(angle+sweep, l.R)
			large := 0
			if sweep > math.Pi {
				large = 1
			}
			shape.Path = fmt.Sprintf("M%.2f,%.2f L%.2f,%.2f A%.0f,%.0f 0 %d 0 %.2f,%.2f Z",
				l.CX, l.CY, x0, y0, l.R, l.R, large, x1, y1)
		}
		l.Shapes = append(l.Shapes, shape)
		angle += sweep
	}
	return l
}

func (l PieLayout) point(theta, r float64) (float64, float64) {
	return l.CX + r*math.Cos(theta), l.CY - r*math.Sin(theta)
}
