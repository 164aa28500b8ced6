package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vqtlbrowser/app"
	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/figure"
)

func testSnapshot(t *testing.T) *app.Snapshot {
	t.Helper()
	rows := []vqtl.DisplayRow{
		{Individual: "NA18489", RawDosage: 0.5, Dosage: 0.5},
		{Individual: "NA19239", RawDosage: 1.8, Dosage: 1.8},
	}
	rows[1].Summaries[vqtl.KOn] = vqtl.ParameterSummary{Mean: -0.5, Lower: -1, Upper: 0.25}
	table, err := vqtl.NewDisplayTable(rows)
	require.NoError(t, err)
	grid, err := figure.BuildGrid(table)
	require.NoError(t, err)
	return &app.Snapshot{
		ID:           uuid.New(),
		BuiltAt:      time.Now(),
		Gene:         "ENSG00000184674",
		Associations: []vqtl.Association{{Gene: "ENSG00000184674", ID: "rs140053", Beta: 0.41, PBeta: 1.5e-9}},
		Table:        table,
		Figures:      grid,
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	writeSummary(&buf, testSnapshot(t), false)
	out := buf.String()
	assert.Contains(t, out, "rs140053")
	assert.Contains(t, out, "1.500e-09")
	assert.Contains(t, out, "NA19239")
	assert.Contains(t, out, "[-1.000, 0.250]")

	buf.Reset()
	writeSummary(&buf, testSnapshot(t), true)
	assert.Contains(t, buf.String(), "| rs140053 |")
}

func TestRenderFigures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "png")
	paths, err := renderFigures(testSnapshot(t).Figures, dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Equal(t, filepath.Join(dir, "geno-kr.png"), paths[0])
}
