package excel

// Sheet names of the exported workbook
const (
	AssociationsSheet = "associations"
	DisplaySheet      = "display"
)

// RawRowData represents a row of a sheet as header → cell text
type RawRowData map[string]string

// SheetData is one sheet read back from a workbook
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}
