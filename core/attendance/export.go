package attendance

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	exportSheet = "Attendance"
)

var (
	ErrUnknownFormat = errors.New("format must be csv or xlsx")

	exportHeader = []string{"Date", "Student", "Grade", "Class", "Status", "Remarks"}
)

// Export holds a rendered attendance report.
type Export struct {
	Content     []byte
	ContentType string
	Filename    string
}

func exportRow(e Entry) []string {
	var grade string
	if e.StudentGrade > 0 {
		grade = strconv.Itoa(e.StudentGrade)
	}
	return []string{e.Date.String(), e.StudentName, grade, e.ClassName, string(e.Status), e.Remarks}
}

// Render writes the entries in the given format ("csv" or "xlsx").
func Render(entries []Entry, format string) (Export, error) {
	switch format {
	case "", FormatCSV:
		content, err := renderCSV(entries)
		if err != nil {
			return Export{}, err
		}
		return Export{Content: content, ContentType: ContentTypeCSV, Filename: "attendance.csv"}, nil
	case FormatXLSX:
		content, err := renderXLSX(entries)
		if err != nil {
			return Export{}, err
		}
		return Export{Content: content, ContentType: ContentTypeXLSX, Filename: "attendance.xlsx"}, nil
	default:
		return Export{}, ErrUnknownFormat
	}
}

func renderCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, errors.Wrap(err, "writing csv header")
	}
	for _, e := range entries {
		if err := w.Write(exportRow(e)); err != nil {
			return nil, errors.Wrap(err, "writing csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "flushing csv")
	}
	return buf.Bytes(), nil
}

func renderXLSX(entries []Entry) ([]byte, error) {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	if err := setRow(book, 1, exportHeader); err != nil {
		return nil, err
	}
	for i, e := range entries {
		if err := setRow(book, i+2, exportRow(e)); err != nil {
			return nil, err
		}
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}

func setRow(book *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "resolving cell")
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err = book.SetSheetRow(exportSheet, cell, &vals); err != nil {
		return errors.Wrapf(err, "writing row %d", row)
	}
	return nil
}
