package vqtl

import (
	"fmt"
)

// Column names of the wide display table, in the order they are exported.
const (
	ColumnIndividual = "ind"
	ColumnDosage     = "geno"
)

// DisplayTable joins jittered dosage with posterior summaries, one row per
// genotyped individual. It is built once and never mutated; accessors return
// copies.
type DisplayTable struct {
	rows  []DisplayRow
	index map[string]int
}

// NewDisplayTable indexes rows by individual. Duplicate individuals are rejected.
func NewDisplayTable(rows []DisplayRow) (*DisplayTable, error) {
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		if _, dup := index[row.Individual]; dup {
			return nil, fmt.Errorf("duplicate individual %q in display table", row.Individual)
		}
		index[row.Individual] = i
	}
	copied := make([]DisplayRow, len(rows))
	copy(copied, rows)
	return &DisplayTable{rows: copied, index: index}, nil
}

// Len returns the number of rows.
func (t *DisplayTable) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows in table order.
func (t *DisplayTable) Rows() []DisplayRow {
	out := make([]DisplayRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Row looks up one individual.
func (t *DisplayTable) Row(individual string) (DisplayRow, bool) {
	i, ok := t.index[individual]
	if !ok {
		return DisplayRow{}, false
	}
	return t.rows[i], true
}

// Individuals returns the row index.
func (t *DisplayTable) Individuals() []string {
	ids := make([]string, len(t.rows))
	for i, row := range t.rows {
		ids[i] = row.Individual
	}
	return ids
}

// Columns returns the numeric column names: geno, the three means, the three
// low half-widths, then the three high half-widths.
func Columns() []string {
	cols := []string{ColumnDosage}
	for _, p := range Parameters {
		cols = append(cols, p.String())
	}
	for _, p := range Parameters {
		cols = append(cols, p.String()+"_low")
	}
	for _, p := range Parameters {
		cols = append(cols, p.String()+"_high")
	}
	return cols
}

// Column extracts a numeric column by name.
func (t *DisplayTable) Column(name string) ([]float64, error) {
	values := make([]float64, len(t.rows))
	if name == ColumnDosage {
		for i, row := range t.rows {
			values[i] = row.Dosage
		}
		return values, nil
	}

	base, suffix := name, ""
	for _, s := range []string{"_low", "_high"} {
		if len(name) > len(s) && name[len(name)-len(s):] == s {
			base, suffix = name[:len(name)-len(s)], s
			break
		}
	}
	p, ok := ParseParameter(base)
	if !ok {
		return nil, fmt.Errorf("unknown display column %q", name)
	}
	for i, row := range t.rows {
		s := row.Summaries[p]
		switch suffix {
		case "_low":
			values[i] = s.LowErr()
		case "_high":
			values[i] = s.HighErr()
		default:
			values[i] = s.Mean
		}
	}
	return values, nil
}

// Record returns one row as column name → value, keyed like Columns plus "ind".
func (r DisplayRow) Record() map[string]interface{} {
	rec := map[string]interface{}{
		ColumnIndividual: r.Individual,
		ColumnDosage:     r.Dosage,
	}
	for _, p := range Parameters {
		s := r.Summaries[p]
		rec[p.String()] = s.Mean
		rec[p.String()+"_low"] = s.LowErr()
		rec[p.String()+"_high"] = s.HighErr()
	}
	return rec
}
