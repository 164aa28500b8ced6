package figure

import (
	"fmt"

	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
)

// Figure dimensions and theme shared by every plot in the grid.
const (
	Width    = 400
	Height   = 400
	Template = "simple_white"

	DosageLabel = "Imputed dosage"
)

// ID names a plot slot in the grid
type ID string

const (
	GenoKR   ID = "geno-kr"
	GenoKOn  ID = "geno-kon"
	GenoKOff ID = "geno-koff"
	KRKOn    ID = "kr-kon"
	KRKOff   ID = "kr-koff"
	KOnKOff  ID = "kon-koff"
)

// Layout of the grid: the first row plots each parameter against dosage, the
// second row pairs parameters and has no data source yet.
var Layout = [2][3]ID{
	{GenoKR, GenoKOn, GenoKOff},
	{KRKOn, KRKOff, KOnKOff},
}

// wired maps the dosage plots to the parameter on their y axis
var wired = map[ID]vqtl.Parameter{
	GenoKR:   vqtl.KR,
	GenoKOn:  vqtl.KOn,
	GenoKOff: vqtl.KOff,
}

// ErrorBar is an asymmetric Plotly error bar: Array extends above the point,
// ArrayMinus below.
type ErrorBar struct {
	Type       string    `json:"type"`
	Symmetric  bool      `json:"symmetric"`
	Array      []float64 `json:"array"`
	ArrayMinus []float64 `json:"arrayminus"`
}

// Marker styles the scatter points
type Marker struct {
	Color string `json:"color,omitempty"`
	Size  int    `json:"size,omitempty"`
}

// Trace is a Plotly scatter trace
type Trace struct {
	Type          string    `json:"type"`
	Mode          string    `json:"mode"`
	X             []float64 `json:"x"`
	Y             []float64 `json:"y"`
	Text          []string  `json:"text"`
	HoverTemplate string    `json:"hovertemplate"`
	ErrorY        *ErrorBar `json:"error_y,omitempty"`
	Marker        Marker    `json:"marker"`
	ShowLegend    bool      `json:"showlegend"`
}

// AxisTitle is the Plotly axis title object
type AxisTitle struct {
	Text string `json:"text"`
}

// Axis renders plain axes with outside ticks and no grid
type Axis struct {
	Title     AxisTitle `json:"title"`
	ShowGrid  bool      `json:"showgrid"`
	ShowLine  bool      `json:"showline"`
	ZeroLine  bool      `json:"zeroline"`
	Ticks     string    `json:"ticks"`
	LineColor string    `json:"linecolor"`
}

// PlotLayout is the Plotly layout object. The simple_white theme is spelled
// out as explicit colors and axis settings since plotly.js has no named
// templates.
type PlotLayout struct {
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	PaperBGColor string            `json:"paper_bgcolor"`
	PlotBGColor  string            `json:"plot_bgcolor"`
	XAxis        Axis              `json:"xaxis"`
	YAxis        Axis              `json:"yaxis"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Figure is one declarative plot. An unwired figure has no traces.
type Figure struct {
	ID     ID         `json:"id"`
	Data   []Trace    `json:"data"`
	Layout PlotLayout `json:"layout"`
}

// Wired reports whether the figure has data
func (f *Figure) Wired() bool {
	return len(f.Data) > 0
}

func axis(title string) Axis {
	return Axis{
		Title:     AxisTitle{Text: title},
		ShowLine:  true,
		Ticks:     "outside",
		LineColor: "black",
	}
}

func newLayout(xTitle, yTitle string) PlotLayout {
	return PlotLayout{
		Width:        Width,
		Height:       Height,
		PaperBGColor: "white",
		PlotBGColor:  "white",
		XAxis:        axis(xTitle),
		YAxis:        axis(yTitle),
		Meta:         map[string]string{"template": Template},
	}
}

// DosageScatter plots the posterior mean of p against jittered dosage, with
// the credible interval as error bars and the individual as hover name.
func DosageScatter(id ID, table *vqtl.DisplayTable, p vqtl.Parameter) (*Figure, error) {
	x, err := table.Column(vqtl.ColumnDosage)
	if err != nil {
		return nil, err
	}
	y, err := table.Column(p.String())
	if err != nil {
		return nil, err
	}
	high, err := table.Column(p.String() + "_high")
	if err != nil {
		return nil, err
	}
	low, err := table.Column(p.String() + "_low")
	if err != nil {
		return nil, err
	}

	trace := Trace{
		Type: "scatter",
		Mode: "markers",
		X:    x,
		Y:    y,
		Text: table.Individuals(),
		HoverTemplate: fmt.Sprintf("<b>%%{text}</b><br>%s=%%{x}<br>%s=%%{y}<extra></extra>",
			DosageLabel, p.Label()),
		ErrorY: &ErrorBar{
			Type:       "data",
			Array:      high,
			ArrayMinus: low,
		},
		Marker: Marker{Color: "#1F77B4", Size: 6},
	}
	return &Figure{
		ID:     id,
		Data:   []Trace{trace},
		Layout: newLayout(DosageLabel, p.Label()),
	}, nil
}

// Empty declares a slot with no data source
func Empty(id ID) *Figure {
	return &Figure{ID: id, Data: []Trace{}, Layout: newLayout("", "")}
}

// Grid holds every figure of the page, keyed by slot
type Grid struct {
	figures map[ID]*Figure
}

// BuildGrid wires the dosage plots from table and declares the rest empty
func BuildGrid(table *vqtl.DisplayTable) (*Grid, error) {
	g := &Grid{figures: make(map[ID]*Figure, 6)}
	for _, row := range Layout {
		for _, id := range row {
			p, ok := wired[id]
			if !ok {
				g.figures[id] = Empty(id)
				continue
			}
			f, err := DosageScatter(id, table, p)
			if err != nil {
				return nil, errors.Wrapf(err, "figure %s", id)
			}
			g.figures[id] = f
		}
	}
	return g, nil
}

// Get returns the figure in slot id
func (g *Grid) Get(id ID) (*Figure, error) {
	f, ok := g.figures[id]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("figure %s", id))
	}
	return f, nil
}

// Rows returns the figures in page layout order
func (g *Grid) Rows() [][]*Figure {
	rows := make([][]*Figure, len(Layout))
	for i, row := range Layout {
		for _, id := range row {
			rows[i] = append(rows[i], g.figures[id])
		}
	}
	return rows
}

// WiredIDs lists the slots that carry data, in layout order
func (g *Grid) WiredIDs() []ID {
	var ids []ID
	for _, row := range Layout {
		for _, id := range row {
			if g.figures[id].Wired() {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
