// Package render turns query results into HTML fragments and terminal text.
// Every renderer is a stateless mapping from its payload to output.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("render").Funcs(template.FuncMap{
	"num": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	"add": func(a, b float64) float64 { return a + b },
	"mid": func(a, b float64) float64 { return (a + b) / 2 },

	"noGraphData": func() string { return NoGraphData },
	"noPieData":   func() string { return NoPieData },
	"noResponse":  func() string { return NoResponse },
}).ParseFS(templateFS, "templates/*.tmpl"))

// TableView is the table payload flattened into display strings.
type TableView struct {
	Headers []string
	Rows    [][]string
}

// NewTableView crosses the column definitions with each row. Missing cells
// are blank.
func NewTableView(t models.TableData) TableView {
	v := TableView{Headers: make([]string, len(t.Columns))}
	for i, c := range t.Columns {
		v.Headers[i] = c.Name
	}
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			if val, ok := row.Get(c.Name); ok {
				cells[i] = models.FormatValue(val)
			}
		}
		v.Rows = append(v.Rows, cells)
	}
	return v
}

// TableHTML renders a grid with one header per column.
func TableHTML(t models.TableData) (template.HTML, error) {
	return execute("table", NewTableView(t))
}

// GraphHTML renders a line chart as inline SVG.
func GraphHTML(g models.GraphData) (template.HTML, error) {
	return execute("graph", LayoutGraph(g))
}

// PieHTML renders a pie chart as inline SVG with a legend.
func PieHTML(p models.PieData) (template.HTML, error) {
	return execute("pie", LayoutPie(p))
}

// HumanReadableHTML renders annotated text as list items and paragraphs.
// All text is escaped; only the recognised markers produce markup.
func HumanReadableHTML(text string) (template.HTML, error) {
	return execute("human", struct {
		Present bool
		Lines   []Line
	}{Present: text != "", Lines: Annotate(text)})
}

// VisualizationHTML picks the renderer named by resp.VisualizationType. An
// unknown type renders nothing.
func VisualizationHTML(resp *models.QueryResponse) (template.HTML, error) {
	switch resp.VisualizationType {
	case models.VisualizationTable:
		t, err := resp.Table()
		if err != nil {
			return "", err
		}
		return TableHTML(t)
	case models.VisualizationGraph:
		g, err := resp.Graph()
		if err != nil {
			return "", err
		}
		return GraphHTML(g)
	case models.VisualizationPie:
		p, err := resp.Pie()
		if err != nil {
			return "", err
		}
		return PieHTML(p)
	default:
		return "", nil
	}
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
