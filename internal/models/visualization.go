package models

// Column describes one table column and the type name of its first value.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableData is the payload for VisualizationTable.
type TableData struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// GraphConfig names the axis keys of a line chart. Empty data leaves it blank.
type GraphConfig struct {
	XAxis     string `json:"xAxis,omitempty"`
	YAxis     string `json:"yAxis,omitempty"`
	GraphType string `json:"graphType,omitempty"`
}

// GraphData is the payload for VisualizationGraph.
type GraphData struct {
	Type   string      `json:"type"`
	Data   []Row       `json:"data"`
	Config GraphConfig `json:"config"`
}

// PieSlice is one labelled pie segment.
type PieSlice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// PieData is the payload for VisualizationPie.
type PieData struct {
	Type string     `json:"type"`
	Data []PieSlice `json:"data"`
}
