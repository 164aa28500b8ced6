package ui

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vqtlbrowser/app"
	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/figure"
	"vqtlbrowser/internal/metrics"
	"vqtlbrowser/internal/storage"
)

func testSnapshot(t *testing.T) *app.Snapshot {
	t.Helper()
	rows := []vqtl.DisplayRow{
		{Individual: "NA18489", RawDosage: 0.5, Dosage: 0.52},
		{Individual: "NA19239", RawDosage: 1.8, Dosage: 1.77},
	}
	rows[0].Summaries[vqtl.KR] = vqtl.ParameterSummary{Mean: 3, Lower: 2.5, Upper: 3.4}
	rows[1].Summaries[vqtl.KR] = vqtl.ParameterSummary{Mean: 3.2, Lower: 3.1, Upper: 3.6}
	table, err := vqtl.NewDisplayTable(rows)
	require.NoError(t, err)
	grid, err := figure.BuildGrid(table)
	require.NoError(t, err)

	return &app.Snapshot{
		ID:      uuid.New(),
		BuiltAt: time.Now(),
		Gene:    "ENSG00000184674",
		Associations: []vqtl.Association{
			{Gene: "ENSG00000184674", ID: "rs140053", Beta: 0.41, PBeta: 1.5e-9},
			{Gene: "ENSG00000100300", ID: "rs5760", Beta: -0.2, PBeta: math.NaN()},
		},
		Table:   table,
		Figures: grid,
	}
}

func newTestApp(t *testing.T, config Config) *App {
	t.Helper()
	a, err := NewApp(testSnapshot(t), config, nil, nil)
	require.NoError(t, err)
	return a
}

func get(t *testing.T, a *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndex(t *testing.T) {
	rec := get(t, newTestApp(t, Config{}), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "<title>vQTL browser</title>")
	assert.Contains(t, body, `id="vqtls"`)
	assert.Contains(t, body, "rs140053")
	assert.Contains(t, body, "1.500e-09")
	for _, row := range figure.Layout {
		for _, id := range row {
			assert.Contains(t, body, `id="`+string(id)+`"`)
		}
	}
	assert.Contains(t, body, "Imputed dosage")
	assert.Contains(t, body, "log k_off")
}

func TestAssociationsAPI(t *testing.T) {
	rec := get(t, newTestApp(t, Config{}), "/api/associations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "rs140053", rows[0]["id"])
	assert.Nil(t, rows[1]["p_beta"])
}

func TestDisplayAPI(t *testing.T) {
	rec := get(t, newTestApp(t, Config{}), "/api/display")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Columns, 11)
	require.Len(t, payload.Rows, 2)
	assert.Equal(t, "NA18489", payload.Rows[0]["ind"])
	assert.InDelta(t, 0.5, payload.Rows[0]["k_r_low"], 1e-12)
	assert.InDelta(t, 0.4, payload.Rows[0]["k_r_high"], 1e-12)
}

func TestFigureAPI(t *testing.T) {
	a := newTestApp(t, Config{})

	rec := get(t, a, "/api/figures/geno-kr")
	require.Equal(t, http.StatusOK, rec.Code)
	var f figure.Figure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.True(t, f.Wired())
	assert.Equal(t, "log k_r", f.Layout.YAxis.Title.Text)

	rec = get(t, a, "/api/figures/kr-kon")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.False(t, f.Wired())

	rec = get(t, a, "/api/figures/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFigurePNG(t *testing.T) {
	a := newTestApp(t, Config{})

	rec := get(t, a, "/figures/geno-kr.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	assert.Equal(t, http.StatusNotFound, get(t, a, "/figures/kon-koff.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, a, "/figures/unknown.png").Code)
}

func TestExport(t *testing.T) {
	rec := get(t, newTestApp(t, Config{}), "/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "vqtl-ENSG00000184674.xlsx")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))
}

func TestHealthAndStatic(t *testing.T) {
	a := newTestApp(t, Config{})
	assert.Equal(t, http.StatusOK, get(t, a, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, a, "/api/snapshot").Code)
	assert.Equal(t, http.StatusOK, get(t, a, "/static/browser.js").Code)
}

func TestSnapshotSources(t *testing.T) {
	snap := testSnapshot(t)
	snap.Sources = map[string]*storage.BlobMetadata{
		"posterior": {Key: "s3://qtl/ipsc/post.json.gz", Size: 2048, ETag: "etag123", Provider: storage.StorageS3},
	}
	a, err := NewApp(snap, Config{}, nil, nil)
	require.NoError(t, err)

	rec := get(t, a, "/api/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Gene    string                          `json:"gene"`
		Sources map[string]storage.BlobMetadata `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "ENSG00000184674", payload.Gene)
	require.Contains(t, payload.Sources, "posterior")
	assert.Equal(t, "etag123", payload.Sources["posterior"].ETag)
	assert.Equal(t, int64(2048), payload.Sources["posterior"].Size)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a, err := NewApp(testSnapshot(t), Config{}, m, reg)
	require.NoError(t, err)

	get(t, a, "/api/associations")
	rec := get(t, a, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vqtl_http_requests_total{code="200",route="/api/associations"} 1`)
}

func TestDebugRoutes(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, newTestApp(t, Config{}), "/debug/pprof/").Code)
	assert.Equal(t, http.StatusOK, get(t, newTestApp(t, Config{Debug: true}), "/debug/pprof/").Code)
}

func TestNotesPanel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("## GSTT1\n\nDosage raises *k_on*.\n<script>alert(1)</script>\n"), 0644))

	rec := get(t, newTestApp(t, Config{NotesPath: path}), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `id="notes"`)
	assert.Contains(t, body, "<em>k_on</em>")
	assert.NotContains(t, body, "<script>alert(1)</script>")

	// a missing notes file disables the panel
	rec = get(t, newTestApp(t, Config{NotesPath: path + ".missing"}), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `id="notes"`)
}

func TestTemplateReload(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body>{{.Title}} v1</body></html>`), 0644))

	a := newTestApp(t, Config{Debug: true, TemplateDir: dir})
	assert.Contains(t, get(t, a, "/").Body.String(), "vQTL browser v1")

	require.NoError(t, os.WriteFile(page, []byte(`<html><body>{{.Title}} v2</body></html>`), 0644))
	assert.Contains(t, get(t, a, "/").Body.String(), "vQTL browser v2")
}
