// Package importer reads piece lists: the plain quantity/size text format,
// CSV files with delimiter detection, and Excel workbooks. Header
// recognition is case-insensitive with flexible column mapping.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/piwi3910/CutYield/internal/model"
	"github.com/xuri/excelize/v2"
)

// ImportResult holds the results of a tabular import. Rows that fail to
// parse are reported in Errors and skipped; the remaining rows are kept.
type ImportResult struct {
	Pieces   []model.PieceSpec
	Errors   []string
	Warnings []string
}

// OK reports whether the import produced pieces without row errors.
func (r ImportResult) OK() bool {
	return len(r.Errors) == 0 && len(r.Pieces) > 0
}

// ColumnMapping maps column roles to their indices in a row. -1 means absent.
type ColumnMapping struct {
	Label    int
	Width    int
	Height   int
	Quantity int
}

type columnRole int

const (
	roleLabel columnRole = iota
	roleWidth
	roleHeight
	roleQuantity
)

// headerAliases maps accepted header names (lowercase) to column roles.
var headerAliases = map[string]columnRole{
	"label": roleLabel, "name": roleLabel, "part": roleLabel, "part name": roleLabel,
	"description": roleLabel, "desc": roleLabel, "piece": roleLabel, "item": roleLabel,

	"width": roleWidth, "w": roleWidth, "length": roleWidth, "len": roleWidth, "x": roleWidth,

	"height": roleHeight, "h": roleHeight, "depth": roleHeight, "d": roleHeight, "y": roleHeight,

	"quantity": roleQuantity, "qty": roleQuantity, "count": roleQuantity, "num": roleQuantity,
	"amount": roleQuantity, "pcs": roleQuantity, "pieces": roleQuantity,
}

// positionalMapping is used when the first row is not a header.
var positionalMapping = ColumnMapping{Label: 0, Width: 1, Height: 2, Quantity: 3}

var delimiterNames = map[rune]string{',': "comma", ';': "semicolon", '\t': "tab", '|': "pipe"}

func newCSVReader(r io.Reader, delimiter rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader
}

// DetectCSVDelimiter returns the most likely delimiter among comma,
// semicolon, tab and pipe: the one giving the most rows with the same
// multi-column width as the first row.
func DetectCSVDelimiter(data []byte) rune {
	best := ','
	bestScore := 0

	for _, delim := range []rune{',', ';', '\t', '|'} {
		records, err := newCSVReader(bytes.NewReader(data), delim).ReadAll()
		if err != nil || len(records) == 0 {
			continue
		}
		cols := len(records[0])
		if cols < 2 {
			continue
		}

		consistent := 0
		for _, row := range records {
			if len(row) == cols {
				consistent++
			}
		}
		if score := consistent*10 + cols; score > bestScore {
			bestScore = score
			best = delim
		}
	}
	return best
}

// DetectColumns matches a row against known header aliases. It returns the
// mapping and true when the row is a header, or the positional mapping
// (label, width, height, quantity) and false otherwise.
func DetectColumns(row []string) (ColumnMapping, bool) {
	mapping := ColumnMapping{Label: -1, Width: -1, Height: -1, Quantity: -1}
	isHeader := false

	for i, cell := range row {
		role, ok := headerAliases[strings.ToLower(strings.TrimSpace(cell))]
		if !ok {
			continue
		}
		isHeader = true
		var slot *int
		switch role {
		case roleLabel:
			slot = &mapping.Label
		case roleWidth:
			slot = &mapping.Width
		case roleHeight:
			slot = &mapping.Height
		case roleQuantity:
			slot = &mapping.Quantity
		}
		if *slot == -1 {
			*slot = i
		}
	}

	if !isHeader {
		return positionalMapping, false
	}
	return mapping, true
}

func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseRow extracts a PieceSpec from a row. An empty label stays empty so
// that expansion numbers the pieces with the default prefix.
func parseRow(row []string, mapping ColumnMapping, rowLabel string) (model.PieceSpec, error) {
	number := func(idx int, name string, parse func(string) (float64, error)) (float64, error) {
		raw := getCell(row, idx)
		if raw == "" {
			return 0, fmt.Errorf("%s: missing %s value", rowLabel, name)
		}
		v, err := parse(raw)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid %s '%s'", rowLabel, name, raw)
		}
		return v, nil
	}
	parseFloat := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	parseInt := func(s string) (float64, error) {
		n, err := strconv.Atoi(s)
		return float64(n), err
	}

	width, err := number(mapping.Width, "width", parseFloat)
	if err != nil {
		return model.PieceSpec{}, err
	}
	height, err := number(mapping.Height, "height", parseFloat)
	if err != nil {
		return model.PieceSpec{}, err
	}
	qty, err := number(mapping.Quantity, "quantity", parseInt)
	if err != nil {
		return model.PieceSpec{}, err
	}
	if width <= 0 || height <= 0 || qty <= 0 {
		return model.PieceSpec{}, fmt.Errorf("%s: width, height and quantity must be positive", rowLabel)
	}

	return model.PieceSpec{
		Label:    getCell(row, mapping.Label),
		Width:    width,
		Height:   height,
		Quantity: int(qty),
	}, nil
}

// ImportCSV imports pieces from a CSV file, detecting the delimiter and
// mapping columns by header names.
func ImportCSV(path string) ImportResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("cannot open file: %v", err)}}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ImportResult{Errors: []string{"file is empty"}}
	}

	delimiter := DetectCSVDelimiter(data)
	var warnings []string
	if delimiter != ',' {
		warnings = append(warnings, fmt.Sprintf("detected %s delimiter", delimiterNames[delimiter]))
	}

	return importCSV(bytes.NewReader(data), delimiter, warnings)
}

// ImportCSVFromReader imports pieces from a CSV reader with a known delimiter.
func ImportCSVFromReader(r io.Reader, delimiter rune) ImportResult {
	return importCSV(r, delimiter, nil)
}

func importCSV(r io.Reader, delimiter rune, warnings []string) ImportResult {
	records, err := newCSVReader(r, delimiter).ReadAll()
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("cannot read CSV: %v", err)}, Warnings: warnings}
	}
	return importFromRows(records, "Line", warnings)
}

// ImportExcel imports pieces from the first sheet of an Excel workbook.
func ImportExcel(path string) ImportResult {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("cannot open Excel file: %v", err)}}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ImportResult{Errors: []string{"Excel file has no sheets"}}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("cannot read Excel data: %v", err)}}
	}
	return importFromRows(rows, "Row", nil)
}

// importFromRows is the shared import logic for CSV and Excel data.
func importFromRows(rows [][]string, rowPrefix string, warnings []string) ImportResult {
	result := ImportResult{Warnings: warnings}
	if len(rows) == 0 {
		result.Errors = append(result.Errors, "no data rows found")
		return result
	}

	mapping, hasHeader := DetectColumns(rows[0])
	startRow := 0
	if hasHeader {
		startRow = 1
		result.Warnings = append(result.Warnings, "detected header row, skipping")

		var missing []string
		if mapping.Width == -1 {
			missing = append(missing, "Width")
		}
		if mapping.Height == -1 {
			missing = append(missing, "Height")
		}
		if mapping.Quantity == -1 {
			missing = append(missing, "Quantity")
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("required columns not found in header: %s", strings.Join(missing, ", ")))
			return result
		}
	} else if len(rows[0]) >= 3 {
		// An unrecognised header still has a non-numeric width column.
		if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][1]), 64); err != nil {
			startRow = 1
			result.Warnings = append(result.Warnings, "detected header row, skipping")
		}
	}

	for i := startRow; i < len(rows); i++ {
		if isEmptyRow(rows[i]) {
			continue
		}
		spec, err := parseRow(rows[i], mapping, fmt.Sprintf("%s %d", rowPrefix, i+1))
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Pieces = append(result.Pieces, spec)
	}

	return result
}
