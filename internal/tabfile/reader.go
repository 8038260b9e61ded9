package tabfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"curator/internal/dataset"
)

// Sheet pairs a sheet (or record-group) name with its parsed dataset.
// The name is the caller's hint for table identification.
type Sheet struct {
	Name string
	Data *dataset.Dataset
}

// ReadFile parses a metadata file into one dataset per sheet. Workbooks and
// hierarchical JSON files are supported; the extension selects the parser.
func ReadFile(path string, filter *dataset.ColumnFilter) ([]Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadWorkbook(path, filter)
	case ".json":
		return ReadHierarchy(path, filter)
	default:
		return nil, fmt.Errorf("unsupported metadata format: %s", filepath.Base(path))
	}
}

// ReadWorkbook reads every sheet of a workbook. The first row of each sheet
// is the header; header names pass through the column filter and empty
// header cells are skipped.
func ReadWorkbook(path string, filter *dataset.ColumnFilter) ([]Sheet, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer book.Close()

	var sheets []Sheet
	for _, name := range book.GetSheetList() {
		rows, err := book.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		data := sheetFromRows(rows, filter)
		if data == nil {
			continue
		}
		sheets = append(sheets, Sheet{Name: name, Data: data})
	}
	return sheets, nil
}

func sheetFromRows(rows [][]string, filter *dataset.ColumnFilter) *dataset.Dataset {
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	columns := make([]string, len(header))
	var kept []string
	for i, name := range header {
		cleaned := filter.Apply(name)
		columns[i] = cleaned
		if cleaned != "" {
			kept = append(kept, cleaned)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	data := dataset.New(kept...)
	for _, cells := range rows[1:] {
		row := make(dataset.Row, len(kept))
		empty := true
		for i, col := range columns {
			if col == "" {
				continue
			}
			var value string
			if i < len(cells) {
				value = cells[i]
			}
			row[col] = value
			if strings.TrimSpace(value) != "" {
				empty = false
			}
		}
		if !empty {
			data.Rows = append(data.Rows, row)
		}
	}
	return data
}

// ReadHierarchy reads a hierarchical JSON file: a top-level object mapping
// table names to arrays of flat records. Group order in the file is
// preserved.
func ReadHierarchy(path string, filter *dataset.ColumnFilter) ([]Sheet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parse %s: top-level value must be an object", filepath.Base(path))
	}

	var sheets []Sheet
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		key := keyTok.(string)

		var records []map[string]any
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("parse %s: group %q: %w", filepath.Base(path), key, err)
		}
		data := sheetFromRecords(records, filter)
		if data == nil {
			continue
		}
		sheets = append(sheets, Sheet{Name: key, Data: data})
	}
	return sheets, nil
}

func sheetFromRecords(records []map[string]any, filter *dataset.ColumnFilter) *dataset.Dataset {
	var columns []string
	seen := map[string]struct{}{}
	cleanNames := make([]map[string]string, len(records))

	for i, record := range records {
		cleanNames[i] = make(map[string]string, len(record))
		var recordCols []string
		for name := range record {
			cleaned := filter.Apply(name)
			if cleaned == "" {
				continue
			}
			cleanNames[i][name] = cleaned
			recordCols = append(recordCols, cleaned)
		}
		// Map iteration order is random; keep column order deterministic.
		sort.Strings(recordCols)
		for _, col := range recordCols {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				columns = append(columns, col)
			}
		}
	}
	if len(columns) == 0 {
		return nil
	}

	data := dataset.New(columns...)
	for i, record := range records {
		row := make(dataset.Row, len(columns))
		for name, value := range record {
			col, ok := cleanNames[i][name]
			if !ok {
				continue
			}
			row[col] = scalarText(value)
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

func scalarText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
