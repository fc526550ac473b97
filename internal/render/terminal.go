package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// Terminal renders results for a text console.
type Terminal struct {
	header  lipgloss.Style
	heading lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	err     lipgloss.Style
	border  lipgloss.Style
}

// NewTerminal builds the console styles.
func NewTerminal() *Terminal {
	return &Terminal{
		header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
		heading: lipgloss.NewStyle().Bold(true).MarginTop(1),
		bold:    lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B91C1C")).
			Background(lipgloss.Color("#FEE2E2")).
			Padding(0, 1),
		border: lipgloss.NewStyle().Foreground(lipgloss.Color("#8884d8")),
	}
}

// Error renders the single user-visible failure message.
func (t *Terminal) Error(msg string) string {
	return t.err.Render("Error: " + msg)
}

// Response renders the visualization followed by the human-readable block.
func (t *Terminal) Response(resp *models.QueryResponse) (string, error) {
	var b strings.Builder
	switch resp.VisualizationType {
	case models.VisualizationTable:
		data, err := resp.Table()
		if err != nil {
			return "", err
		}
		b.WriteString(t.Table(data))
	case models.VisualizationGraph:
		data, err := resp.Graph()
		if err != nil {
			return "", err
		}
		b.WriteString(t.Graph(data))
	case models.VisualizationPie:
		data, err := resp.Pie()
		if err != nil {
			return "", err
		}
		b.WriteString(t.Pie(data))
	}
	b.WriteString("\n")
	b.WriteString(t.heading.Render("Human Like Response"))
	b.WriteString("\n")
	if resp.HumanReadable != "" {
		b.WriteString(t.HumanReadable(resp.HumanReadable))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Table renders a table payload as a bordered grid.
func (t *Terminal) Table(data models.TableData) string {
	view := NewTableView(data)
	return t.grid(view.Headers, view.Rows)
}

// Graph lists the plotted x/y pairs.
func (t *Terminal) Graph(data models.GraphData) string {
	if len(data.Data) == 0 || data.Config.XAxis == "" {
		return t.muted.Render(NoGraphData)
	}
	x, y := data.Config.XAxis, data.Config.YAxis
	rows := make([][]string, 0, len(data.Data))
	for _, row := range data.Data {
		xv, _ := row.Get(x)
		yv, _ := row.Get(y)
		rows = append(rows, []string{models.FormatValue(xv), models.FormatValue(yv)})
	}
	return t.grid([]string{x, y}, rows)
}

// Pie lists slices with a colour swatch matching the chart palette.
func (t *Terminal) Pie(data models.PieData) string {
	if len(data.Data) == 0 {
		return t.muted.Render(NoPieData)
	}
	rows := make([][]string, 0, len(data.Data))
	for i, s := range data.Data {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(PaletteColor(i))).Render("■")
		rows = append(rows, []string{swatch, s.Label, models.FormatValue(s.Value)})
	}
	return t.grid([]string{"", "label", "value"}, rows)
}

// HumanReadable renders annotated text with bullets and bold spans.
func (t *Terminal) HumanReadable(text string) string {
	if text == "" {
		return t.muted.Render(NoResponse)
	}
	var b strings.Builder
	for _, line := range Annotate(text) {
		if line.Bullet() {
			b.WriteString("  • ")
		}
		for _, seg := range line.Segments {
			if seg.Bold {
				b.WriteString(t.bold.Render(seg.Text))
			} else {
				b.WriteString(seg.Text)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (t *Terminal) grid(headers []string, rows [][]string) string {
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(t.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return t.header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return tbl.String()
}
