package core

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Parse converts delimited text into rows. See ParseReader.
func Parse(raw string, opts ...Option) []Row {
	return ParseReader(strings.NewReader(raw), opts...)
}

// ParseReader reads a header line followed by data lines and returns one Row
// per non-blank data line, keyed by the cleaned header names.
//
// Parsing is total and line oriented: a quoted field never spans lines, so
// one bad quote cannot swallow the lines after it. A line whose quoting is
// broken is split on commas instead and raises WarnMalformedLine. Short
// lines map missing trailing fields to "", and extra fields beyond the
// header are ignored. Input with no data lines returns an empty, non-nil
// slice.
func ParseReader(r io.Reader, opts ...Option) []Row {
	o := newOptions(opts)
	rows := []Row{}
	if r == nil {
		return rows
	}

	src := WrapSource(r)
	defer func() {
		if o.bytesRead != nil {
			o.bytesRead(src.BytesRead)
		}
	}()

	br := bufio.NewReader(src)
	var header []string
	lineNo := 0
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lineNo++
			record := decodeLine(strings.TrimRight(line, "\r\n"), lineNo, o)
			if !isBlank(record) {
				if header == nil {
					header = cleanHeader(record)
				} else {
					rows = append(rows, buildRow(header, record, lineNo))
				}
			}
		}

		if errors.Is(err, io.EOF) {
			return rows
		}
		if err != nil {
			o.emit(Warning{
				Kind:    WarnUnreadable,
				Line:    lineNo + 1,
				Message: fmt.Sprintf("read input: %v", err),
			})
			return rows
		}
	}
}

// decodeLine splits one source line into fields.
//
// Quotes inside an unquoted field (Excel's ="0042") are kept as data and
// cleaned later. Any other quoting error falls back to a plain comma split.
func decodeLine(line string, lineNo int, o options) []string {
	record, err := readRecord(line, false)
	if errors.Is(err, csv.ErrBareQuote) {
		record, err = readRecord(line, true)
	}
	if err == nil {
		return record
	}

	msg := err.Error()
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		msg = perr.Err.Error()
	}
	o.emit(Warning{
		Kind:    WarnMalformedLine,
		Line:    lineNo,
		Value:   line,
		Message: msg + "; fields split on commas",
	})

	fields := strings.Split(line, ",")
	for i, f := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	return fields
}

func readRecord(line string, lazy bool) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = lazy

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return record, err
}

// cleanHeader normalizes header cells so exports with Excel artifacts still
// produce the expected column names.
func cleanHeader(record []string) []string {
	header := make([]string, len(record))
	for i, h := range record {
		header[i] = CleanCell(h)
	}
	return header
}

// buildRow maps record fields onto header names by position. Columns with an
// empty header are dropped; a repeated header keeps its first column.
func buildRow(header, record []string, line int) Row {
	fields := make(map[string]string, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if _, dup := fields[name]; dup {
			continue
		}
		value := ""
		if i < len(record) {
			value = strings.TrimSpace(record[i])
		}
		fields[name] = value
	}
	return Row{Line: line, Fields: fields}
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
