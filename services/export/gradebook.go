// Package exportsvc renders course data to downloadable formats: gradebooks to xlsx and
// assignment deadlines to iCalendar.
package exportsvc

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/darasa/core/stats"
)

const gradebookSheet = "Gradebook"

// Gradebook renders gb as an xlsx workbook and returns it along with a file name.
func Gradebook(gb stats.Gradebook) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(gradebookSheet)
	if err != nil {
		return nil, "", errors.Wrap(err, "creating gradebook sheet")
	}
	f.SetActiveSheet(idx)
	if err = f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", errors.Wrap(err, "deleting default sheet")
	}

	w := &sheetWriter{f: f, sheet: gradebookSheet}
	lastCol := w.col(2 + len(gb.Assignments)) // student, username, assignments..., average
	w.width("A", "A", 28)
	w.width("B", "B", 18)
	if len(gb.Assignments) > 0 {
		w.width(w.col(2), w.col(1+len(gb.Assignments)), 16)
	}
	w.width(lastCol, lastCol, 12)

	headerStyle := w.newStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})

	// title
	w.set("A1", gb.Course.Title)
	w.merge("A1", cell(lastCol, 1))
	w.style("A1", "A1", headerStyle)

	// header
	row := 2
	w.set(cell("A", row), "Student")
	w.set(cell("B", row), "Username")
	for i, a := range gb.Assignments {
		w.set(cell(w.col(2+i), row), fmt.Sprintf("%s (/%d)", a.Title, a.MaxPoints))
	}
	w.set(cell(lastCol, row), "Average")
	w.style(cell("A", row), cell(lastCol, row), headerStyle)

	// rows
	for _, r := range gb.Rows {
		row++
		w.set(cell("A", row), r.StudentName)
		w.set(cell("B", row), r.Username)
		for i, g := range r.Grades {
			if g != nil {
				w.set(cell(w.col(2+i), row), *g)
			} else {
				w.set(cell(w.col(2+i), row), "-")
			}
		}
		if r.Average != nil {
			w.set(cell(lastCol, row), roundTo(*r.Average, 2))
		} else {
			w.set(cell(lastCol, row), "-")
		}
	}
	if w.err != nil {
		return nil, "", errors.Wrap(w.err, "filling gradebook")
	}

	buf := new(bytes.Buffer)
	if err = f.Write(buf); err != nil {
		return nil, "", errors.Wrap(err, "writing gradebook")
	}
	return buf, fileName(gb.Course.Title, "gradebook", ".xlsx"), nil
}

// sheetWriter writes to one sheet and keeps the first error. Calls after an error are no-ops.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) col(idx int) string {
	if w.err != nil {
		return ""
	}
	name, err := excelize.ColumnNumberToName(idx + 1)
	w.err = err
	return name
}

func (w *sheetWriter) set(axis string, value interface{}) {
	if w.err == nil {
		w.err = w.f.SetCellValue(w.sheet, axis, value)
	}
}

func (w *sheetWriter) style(from, to string, styleID int) {
	if w.err == nil {
		w.err = w.f.SetCellStyle(w.sheet, from, to, styleID)
	}
}

func (w *sheetWriter) width(from, to string, width float64) {
	if w.err == nil {
		w.err = w.f.SetColWidth(w.sheet, from, to, width)
	}
}

func (w *sheetWriter) merge(from, to string) {
	if w.err == nil {
		w.err = w.f.MergeCell(w.sheet, from, to)
	}
}

func (w *sheetWriter) newStyle(style *excelize.Style) int {
	if w.err != nil {
		return 0
	}
	id, err := w.f.NewStyle(style)
	w.err = err
	return id
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func roundTo(f float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(f*p) / p
}

// fileName turns title into a safe download name.
func fileName(title, suffix, ext string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		return suffix + ext
	}
	return name + "-" + suffix + ext
}
