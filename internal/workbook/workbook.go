// Package workbook summarizes downloaded export workbooks.
package workbook

import (
	"fmt"
	"strings"

	"github.com/tealeg/xlsx/v3"
)

// Sheet describes one worksheet.
type Sheet struct {
	Name   string   `json:"name" yaml:"name"`
	Rows   int      `json:"rows" yaml:"rows"`
	Cols   int      `json:"cols" yaml:"cols"`
	Header []string `json:"header,omitempty" yaml:"header,omitempty"`
}

// DataRows is the row count without the header row.
func (s Sheet) DataRows() int {
	if s.Rows == 0 {
		return 0
	}
	return s.Rows - 1
}

// Summary lists the sheets of a workbook in file order.
type Summary struct {
	Path   string  `json:"path" yaml:"path"`
	Sheets []Sheet `json:"sheets" yaml:"sheets"`
}

// Summarize opens the workbook at path and reads each sheet's size and header row.
func Summarize(path string) (Summary, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open workbook %s: %w", path, err)
	}
	out := Summary{Path: path, Sheets: make([]Sheet, 0, len(f.Sheets))}
	for _, sh := range f.Sheets {
		s := Sheet{Name: sh.Name, Rows: sh.MaxRow, Cols: sh.MaxCol}
		if sh.MaxRow > 0 {
			header, err := headerRow(sh)
			if err != nil {
				sh.Close()
				return Summary{}, fmt.Errorf("read header of sheet %q: %w", sh.Name, err)
			}
			s.Header = header
		}
		sh.Close()
		out.Sheets = append(out.Sheets, s)
	}
	return out, nil
}

func headerRow(sh *xlsx.Sheet) ([]string, error) {
	row, err := sh.Row(0)
	if err != nil {
		return nil, err
	}
	var header []string
	err = row.ForEachCell(func(c *xlsx.Cell) error {
		header = append(header, strings.TrimSpace(c.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	return header, nil
}
