package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

func TestTableHTML(t *testing.T) {
	data := models.TableData{
		Columns: []models.Column{{Name: "name", Type: "string"}, {Name: "total", Type: "float"}, {Name: "vip", Type: "bool"}},
		Rows: []models.Row{
			models.NewRow([]string{"name", "total", "vip"}, []any{"<ada>", 12.5, true}),
			models.NewRow([]string{"name"}, []any{"bob"}),
		},
	}
	out, err := TableHTML(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)
	for _, want := range []string{"<th>name</th><th>total</th><th>vip</th>", "<td>&lt;ada&gt;</td><td>12.5</td><td>true</td>", "<td>bob</td><td></td><td></td>"} {
		if !strings.Contains(html, want) {
			t.Fatalf("table missing %q:\n%s", want, html)
		}
	}
}

func TestTableHTMLEmptyKeepsHeaders(t *testing.T) {
	out, err := TableHTML(models.TableData{Columns: []models.Column{{Name: "id", Type: "int"}}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "<th>id</th>") || strings.Contains(string(out), "<td>") {
		t.Fatalf("unexpected empty table:\n%s", out)
	}
}

func TestGraphHTML(t *testing.T) {
	g := models.GraphData{
		Type: "graph",
		Data: []models.Row{
			models.NewRow([]string{"month", "revenue"}, []any{"jan", 10.0}),
			models.NewRow([]string{"month", "revenue"}, []any{"feb", 20.0}),
		},
		Config: models.GraphConfig{XAxis: "month", YAxis: "revenue", GraphType: "line"},
	}
	out, err := GraphHTML(g)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)
	for _, want := range []string{`stroke="#8884d8"`, `stroke-width="2"`, `r="4"`, `stroke-dasharray="3 3"`, "$20.00", ">month</text>", ">revenue</text>"} {
		if !strings.Contains(html, want) {
			t.Fatalf("graph missing %q:\n%s", want, html)
		}
	}
}

func TestGraphHTMLPlaceholder(t *testing.T) {
	out, err := GraphHTML(models.GraphData{Type: "graph"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(string(out)) != "<p>No data available</p>" {
		t.Fatalf("unexpected placeholder %q", out)
	}
}

func TestPieHTML(t *testing.T) {
	var slices []models.PieSlice
	for _, l := range []string{"a", "b", "c", "d", "e", "f"} {
		slices = append(slices, models.PieSlice{Label: l, Value: 1})
	}
	out, err := PieHTML(models.PieData{Type: "pie", Data: slices})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)
	if strings.Count(html, `fill="#0088FE"`) < 2 {
		t.Fatalf("expected palette to wrap around for the sixth slice:\n%s", html)
	}
	if !strings.Contains(html, "f: 1") {
		t.Fatalf("missing slice label:\n%s", html)
	}
}

func TestPieHTMLPlaceholder(t *testing.T) {
	out, err := PieHTML(models.PieData{Type: "pie"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(string(out)) != "<p>No data available for the pie chart</p>" {
		t.Fatalf("unexpected placeholder %q", out)
	}
}

func TestHumanReadableHTML(t *testing.T) {
	out, err := HumanReadableHTML("**Revenue** grew\n* <script>x</script>")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(out)
	for _, want := range []string{"<h2>Human-Like Response</h2>", "<p><strong>Revenue</strong> grew</p>", "<li>&lt;script&gt;x&lt;/script&gt;</li>"} {
		if !strings.Contains(html, want) {
			t.Fatalf("human readable missing %q:\n%s", want, html)
		}
	}

	out, err = HumanReadableHTML("")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(string(out)) != "<p>No response available.</p>" {
		t.Fatalf("unexpected placeholder %q", out)
	}
}

func TestVisualizationHTMLDispatch(t *testing.T) {
	data, _ := json.Marshal(models.PieData{Type: "pie", Data: []models.PieSlice{{Label: "x", Value: 3}}})
	resp := &models.QueryResponse{Success: true, VisualizationType: models.VisualizationPie, Data: data}
	out, err := VisualizationHTML(resp)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), `class="pie"`) {
		t.Fatalf("expected pie svg:\n%s", out)
	}

	resp.VisualizationType = "heatmap"
	out, err = VisualizationHTML(resp)
	if err != nil || out != "" {
		t.Fatalf("unknown type should render nothing, got %q %v", out, err)
	}
}
