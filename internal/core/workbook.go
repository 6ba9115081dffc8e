package core

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook reads rows from an .xlsx export. The first row of the sheet is
// the header. An empty sheet name selects the first sheet in the workbook.
//
// Like ParseReader it never fails: an unreadable workbook or a missing sheet
// yields an empty slice and a WarnUnreadable warning.
func ParseWorkbook(r io.Reader, sheet string, opts ...Option) []Row {
	o := newOptions(opts)
	rows := []Row{}
	if r == nil {
		return rows
	}

	src := &CountingReader{r: r}
	f, err := excelize.OpenReader(src)
	if o.bytesRead != nil {
		o.bytesRead(src.BytesRead)
	}
	if err != nil {
		o.emit(Warning{Kind: WarnUnreadable, Message: fmt.Sprintf("open workbook: %v", err)})
		return rows
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			o.emit(Warning{Kind: WarnUnreadable, Message: "workbook has no sheets"})
			return rows
		}
		sheet = sheets[0]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		o.emit(Warning{Kind: WarnUnreadable, Message: fmt.Sprintf("read sheet %q: %v", sheet, err)})
		return rows
	}

	var header []string
	for i, record := range records {
		if header == nil {
			if isBlank(record) {
				continue
			}
			header = cleanHeader(record)
			continue
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, buildRow(header, record, i+1))
	}
	return rows
}
