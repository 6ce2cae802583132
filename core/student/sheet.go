package student

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ReadSheet returns the rows of the first sheet of an .xlsx workbook.
func ReadSheet(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = book.Close() }()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheet")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	return rows, nil
}
