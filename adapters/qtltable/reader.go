package qtltable

import (
	"bufio"
	"context"
	"io"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"vqtlbrowser/adapters/excel"
	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
	"vqtlbrowser/internal/storage"
)

// RequiredColumns are the header names every results file must carry
var RequiredColumns = []string{"gene", "id", "beta", "p_beta"}

// DataReader reads variance-QTL mapping output: whitespace-delimited text
// with a header row, usually gzip-compressed. Locations ending in .xlsx are
// read as a workbook with an associations sheet, such as vqtlctl export
// writes.
type DataReader struct {
	opener   storage.Opener
	location string
}

// NewDataReader creates a reader for the results file at location
func NewDataReader(opener storage.Opener, location string) *DataReader {
	return &DataReader{opener: opener, location: location}
}

// TopAssociations returns the n rows with the smallest p_beta
func (r *DataReader) TopAssociations(ctx context.Context, n int) ([]vqtl.Association, error) {
	log.Infof("[DataReader] Starting to read results file: %s", r.location)
	start := time.Now()

	rc, err := r.opener.Open(ctx, r.location)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open results file %s", r.location)
	}
	defer rc.Close()

	var rows []vqtl.Association
	if isWorkbook(r.location) {
		rows, err = ReadWorkbook(rc)
	} else {
		rows, err = ReadAll(rc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read results file %s", r.location)
	}
	log.Infof("[DataReader] Results file read in %.2fms (%d rows)",
		float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	return Top(rows, n), nil
}

// Provenance returns the size, ETag and modification time of the results file
func (r *DataReader) Provenance(ctx context.Context) (*storage.BlobMetadata, error) {
	return r.opener.Stat(ctx, r.location)
}

// ReadAll parses every data row. Gzip input is detected from its magic bytes.
func ReadAll(r io.Reader) ([]vqtl.Association, error) {
	src, err := storage.Decompress(r)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.InvalidInput("results file is empty")
	}
	headers := strings.Fields(scanner.Text())
	columns, err := locateColumns(headers)
	if err != nil {
		return nil, err
	}

	var rows []vqtl.Association
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row, err := processRow(fields, len(headers), columns)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadWorkbook parses the associations sheet of an xlsx workbook
func ReadWorkbook(r io.Reader) ([]vqtl.Association, error) {
	sheet, err := excel.ReadSheet(r, excel.AssociationsSheet)
	if err != nil {
		return nil, err
	}
	if _, err := locateColumns(sheet.Headers); err != nil {
		return nil, err
	}

	rows := make([]vqtl.Association, 0, len(sheet.Rows))
	for i, raw := range sheet.Rows {
		beta, err := parseFloat(raw["beta"])
		if err != nil {
			return nil, errors.Newf(errors.CodeInvalidInput, "row %d: bad beta %q", i+2, raw["beta"])
		}
		pBeta, err := parseFloat(raw["p_beta"])
		if err != nil {
			return nil, errors.Newf(errors.CodeInvalidInput, "row %d: bad p_beta %q", i+2, raw["p_beta"])
		}
		rows = append(rows, vqtl.Association{Gene: raw["gene"], ID: raw["id"], Beta: beta, PBeta: pBeta})
	}
	return rows, nil
}

func isWorkbook(location string) bool {
	return strings.EqualFold(path.Ext(location), ".xlsx")
}

// Top sorts by ascending p_beta (missing values last, ties keep file order)
// and keeps the first n rows.
func Top(rows []vqtl.Association, n int) []vqtl.Association {
	sorted := make([]vqtl.Association, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].PBeta, sorted[j].PBeta
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a < b
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

func locateColumns(headers []string) (map[string]int, error) {
	columns := make(map[string]int, len(RequiredColumns))
	for i, h := range headers {
		columns[strings.TrimSpace(h)] = i
	}
	for _, name := range RequiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, errors.Newf(errors.CodeInvalidInput, "results file is missing column %q", name)
		}
	}
	return columns, nil
}

// processRow maps fields onto the header. A data row one field wider than the
// header carries an unnamed leading index column, as written by dataframe
// libraries that save their row index.
func processRow(fields []string, width int, columns map[string]int) (vqtl.Association, error) {
	offset := len(fields) - width
	if offset != 0 && offset != 1 {
		return vqtl.Association{}, errors.Newf(errors.CodeInvalidInput, "expected %d fields, got %d", width, len(fields))
	}
	get := func(name string) string {
		return fields[columns[name]+offset]
	}

	beta, err := parseFloat(get("beta"))
	if err != nil {
		return vqtl.Association{}, errors.Newf(errors.CodeInvalidInput, "bad beta %q", get("beta"))
	}
	pBeta, err := parseFloat(get("p_beta"))
	if err != nil {
		return vqtl.Association{}, errors.Newf(errors.CodeInvalidInput, "bad p_beta %q", get("p_beta"))
	}

	return vqtl.Association{
		Gene:  get("gene"),
		ID:    get("id"),
		Beta:  beta,
		PBeta: pBeta,
	}, nil
}

func parseFloat(s string) (float64, error) {
	switch s {
	case "", "NA", "na", "nan", "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
