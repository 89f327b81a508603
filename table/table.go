// Copyright 2025 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table implements an in-memory tabular container with CSV and
// aligned-text writers, used by example apps to materialize fetched data.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/stockparfait/errors"
)

// Table is an ordered list of rows with an optional header. Row order is
// preserved exactly as appended.
type Table struct {
	Header []string // optional, may be nil
	Rows   [][]string
}

// New creates a new Table instance with optional column headers. When
// present, the number of column headers is expected to be the same as the
// number of cells in each row.
func New(header ...string) *Table {
	return &Table{Header: header}
}

// Append adds one or more rows to the table.
func (t *Table) Append(rows ...[]string) {
	t.Rows = append(t.Rows, rows...)
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// limit returns the number of rows to write under p.
func (t *Table) limit(p Params) int {
	if p.Rows > 0 && p.Rows < len(t.Rows) {
		return p.Rows
	}
	return len(t.Rows)
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for _, r := range t.Rows[:t.limit(p)] {
		if err := cw.Write(r); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading: cells
// are padded to a common column width and separated by " | ".
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	rows := t.Rows[:t.limit(p)]
	header := t.Header
	if p.NoHeader {
		header = nil
	}

	var widths []int
	measure := func(row []string) error {
		if len(row) == 0 {
			return errors.Reason("row size = 0")
		}
		if widths == nil {
			widths = make([]int, len(row))
		}
		if len(row) != len(widths) {
			return errors.Reason("row size [%d] != expected size [%d]",
				len(row), len(widths))
		}
		for i, s := range row {
			if w := len([]rune(s)); widths[i] < w {
				widths[i] = w
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
		return nil
	}

	write := func(row []string) error {
		padded := make([]string, len(row))
		for i, s := range row {
			r := []rune(s)
			if len(r) > widths[i] {
				s = string(r[:widths[i]-2]) + ".."
			}
			padded[i] = fmt.Sprintf("%[2]*[1]s", s, widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(padded, " | "))
		return err
	}

	if len(header) > 0 {
		if err := measure(header); err != nil {
			return errors.Annotate(err, "failed to measure header")
		}
	}
	for _, r := range rows {
		if err := measure(r); err != nil {
			return errors.Annotate(err, "failed to measure row")
		}
	}

	if len(header) > 0 {
		if err := write(header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		dashes := make([]string, len(widths))
		for i, width := range widths {
			dashes[i] = strings.Repeat("-", width)
		}
		if err := write(dashes); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for _, r := range rows {
		if err := write(r); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
