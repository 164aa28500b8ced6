package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"vqtlbrowser/adapters/excel"
	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
	"vqtlbrowser/internal/figure"
)

// PageTitle is the heading and document title of the browser
const PageTitle = "vQTL browser"

// associationView replaces NaN with null so the row stays valid JSON
type associationView struct {
	Gene  string   `json:"gene"`
	ID    string   `json:"id"`
	Beta  *float64 `json:"beta"`
	PBeta *float64 `json:"p_beta"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func associationViews(rows []vqtl.Association) []associationView {
	out := make([]associationView, len(rows))
	for i, a := range rows {
		out[i] = associationView{Gene: a.Gene, ID: a.ID, Beta: finite(a.Beta), PBeta: finite(a.PBeta)}
	}
	return out
}

type slotView struct {
	ID    string
	Wired bool
}

type indexView struct {
	Title        string
	Gene         string
	SnapshotID   string
	BuiltAt      string
	Columns      []string
	Associations []vqtl.Association
	Grid         [][]slotView
	Figures      map[string]*figure.Figure
	Notes        template.HTML
	Debug        bool
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := a.snapshot
	view := indexView{
		Title:        PageTitle,
		Gene:         snap.Gene,
		SnapshotID:   snap.ID.String(),
		BuiltAt:      snap.BuiltAt.Format(time.RFC3339),
		Columns:      []string{"gene", "id", "beta", "p_beta"},
		Associations: snap.Associations,
		Figures:      make(map[string]*figure.Figure),
		Notes:        a.notes,
		Debug:        a.config.Debug,
	}
	for _, row := range snap.Figures.Rows() {
		slots := make([]slotView, 0, len(row))
		for _, f := range row {
			slots = append(slots, slotView{ID: string(f.ID), Wired: f.Wired()})
			view.Figures[string(f.ID)] = f
		}
		view.Grid = append(view.Grid, slots)
	}
	a.renderTemplate(w, "index.html", view)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"snapshot": a.snapshot.ID,
	})
}

func (a *App) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := a.snapshot
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           snap.ID,
		"built_at":     snap.BuiltAt,
		"gene":         snap.Gene,
		"individuals":  snap.Table.Len(),
		"short_chains": snap.ShortChains,
		"timings_ms": map[string]float64{
			"associations": ms(snap.Timings.Associations),
			"genotypes":    ms(snap.Timings.Genotypes),
			"posterior":    ms(snap.Timings.Posterior),
			"transform":    ms(snap.Timings.Transform),
		},
		"figures": snap.Figures.WiredIDs(),
		"sources": snap.Sources,
	})
}

func (a *App) handleAssociations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, associationViews(a.snapshot.Associations))
}

func (a *App) handleDisplay(w http.ResponseWriter, r *http.Request) {
	rows := a.snapshot.Table.Rows()
	records := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"columns": append([]string{vqtl.ColumnIndividual}, vqtl.Columns()...),
		"rows":    records,
	})
}

func (a *App) handleFigure(w http.ResponseWriter, r *http.Request) {
	f, err := a.snapshot.Figures.Get(figure.ID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (a *App) handleFigurePNG(w http.ResponseWriter, r *http.Request) {
	f, err := a.snapshot.Figures.Get(figure.ID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := figure.RenderPNG(f, &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	buf.WriteTo(w)
}

func (a *App) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := excel.NewWorkbook(a.snapshot.Associations, a.snapshot.Table).WriteTo(&buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "vqtl-"+a.snapshot.Gene+".xlsx"))
	buf.WriteTo(w)
}

func ms(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Errorf("[Server] failed to encode response: %v", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(raw)
}

// writeError maps an error code to an HTTP status and writes a JSON body
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	if code == errors.CodeNotFound {
		status = http.StatusNotFound
	} else {
		log.Errorf("[Server] request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}
