package excel

import (
	"fmt"
	"io"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
)

// missing is written in place of NaN, which is not a valid spreadsheet number
const missing = "NA"

// Workbook builds the export of the top associations and the display table
type Workbook struct {
	associations []vqtl.Association
	table        *vqtl.DisplayTable
}

// NewWorkbook creates an export for the given data
func NewWorkbook(associations []vqtl.Association, table *vqtl.DisplayTable) *Workbook {
	return &Workbook{associations: associations, table: table}
}

// WriteTo renders the workbook as xlsx
func (wb *Workbook) WriteTo(w io.Writer) (int64, error) {
	start := time.Now()
	f, err := wb.build()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := f.WriteTo(w)
	if err != nil {
		return n, errors.Wrap(err, "failed to write workbook")
	}
	log.Debugf("[ExcelWriter] workbook written in %.2fms (%d bytes)",
		float64(time.Since(start).Nanoseconds())/1e6, n)
	return n, nil
}

// SaveAs writes the workbook to path
func (wb *Workbook) SaveAs(path string) error {
	f, err := wb.build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save workbook %s", path)
	}
	log.Infof("[ExcelWriter] workbook saved to %s", path)
	return nil
}

func (wb *Workbook) build() (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", AssociationsSheet); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to name associations sheet")
	}
	if _, err := f.NewSheet(DisplaySheet); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to add display sheet")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to create header style")
	}

	if err := wb.writeAssociations(f, bold); err != nil {
		f.Close()
		return nil, err
	}
	if err := wb.writeDisplay(f, bold); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (wb *Workbook) writeAssociations(f *excelize.File, headerStyle int) error {
	header := []interface{}{"gene", "id", "beta", "p_beta"}
	if err := writeRow(f, AssociationsSheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(AssociationsSheet, 1, 1, headerStyle); err != nil {
		return errors.Wrap(err, "failed to style header")
	}
	for i, a := range wb.associations {
		row := []interface{}{a.Gene, a.ID, number(a.Beta), number(a.PBeta)}
		if err := writeRow(f, AssociationsSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(AssociationsSheet, "A", "B", 20)
}

func (wb *Workbook) writeDisplay(f *excelize.File, headerStyle int) error {
	columns := vqtl.Columns()
	header := make([]interface{}, 0, len(columns)+1)
	header = append(header, vqtl.ColumnIndividual)
	for _, c := range columns {
		header = append(header, c)
	}
	if err := writeRow(f, DisplaySheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(DisplaySheet, 1, 1, headerStyle); err != nil {
		return errors.Wrap(err, "failed to style header")
	}

	for i, r := range wb.table.Rows() {
		rec := r.Record()
		row := make([]interface{}, 0, len(header))
		row = append(row, r.Individual)
		for _, c := range columns {
			row = append(row, number(rec[c].(float64)))
		}
		if err := writeRow(f, DisplaySheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to write %s row %d", sheet, row))
	}
	return nil
}

func number(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return missing
	}
	return v
}
