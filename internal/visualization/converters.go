// Package visualization picks a visualization type for a result set and
// converts rows into the table, graph and pie payloads.
package visualization

import (
	"fmt"
	"math"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// ToTable derives columns from the first row and keeps rows as they are.
func ToTable(rows []models.Row) models.TableData {
	if len(rows) == 0 {
		return models.TableData{Columns: []models.Column{}, Rows: []models.Row{}}
	}
	first := rows[0]
	columns := make([]models.Column, 0, len(first))
	for _, f := range first {
		columns = append(columns, models.Column{Name: f.Key, Type: models.TypeName(f.Value)})
	}
	return models.TableData{Columns: columns, Rows: rows}
}

// ToGraph plots the first column against the second (or itself when only one
// column exists).
func ToGraph(rows []models.Row) models.GraphData {
	if len(rows) == 0 {
		return models.GraphData{Type: string(models.VisualizationGraph), Data: []models.Row{}}
	}
	keys := rows[0].Keys()
	cfg := models.GraphConfig{GraphType: "line"}
	if len(keys) > 0 {
		cfg.XAxis = keys[0]
		cfg.YAxis = keys[0]
	}
	if len(keys) > 1 {
		cfg.YAxis = keys[1]
	}
	return models.GraphData{Type: string(models.VisualizationGraph), Data: rows, Config: cfg}
}

// ToPie labels slices with column 0 and sizes them by column 1, or 1 when the
// result has a single column.
func ToPie(rows []models.Row) (models.PieData, error) {
	out := models.PieData{Type: string(models.VisualizationPie), Data: []models.PieSlice{}}
	if len(rows) == 0 {
		return out, nil
	}
	keys := rows[0].Keys()
	if len(keys) == 0 {
		return out, fmt.Errorf("pie chart needs at least one column")
	}

	for i, row := range rows {
		label, _ := row.Get(keys[0])
		slice := models.PieSlice{Label: pieLabel(label), Value: 1}
		if len(keys) > 1 {
			raw, ok := row.Get(keys[1])
			if !ok {
				return out, fmt.Errorf("row %d: missing column %q", i, keys[1])
			}
			v, err := models.AsFloat(raw)
			if err != nil {
				return out, fmt.Errorf("row %d: %w", i, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return out, fmt.Errorf("row %d: non-finite value %v in column %q", i, raw, keys[1])
			}
			slice.Value = v
		}
		out.Data = append(out.Data, slice)
	}
	return out, nil
}

func pieLabel(v any) string {
	if v == nil {
		return "null"
	}
	return models.FormatValue(v)
}

// Convert dispatches to the converter for vt.
func Convert(vt models.VisualizationType, rows []models.Row) (any, error) {
	switch vt {
	case models.VisualizationTable:
		return ToTable(rows), nil
	case models.VisualizationGraph:
		return ToGraph(rows), nil
	case models.VisualizationPie:
		return ToPie(rows)
	default:
		return nil, fmt.Errorf("unsupported visualization %q", vt)
	}
}
