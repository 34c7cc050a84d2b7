package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column headers of the enrollment import template. The layout is an
// external contract shared with the operator-facing template download.
const (
	ColFullName       = "Full Name"
	ColEmail          = "Email"
	ColPhone          = "Phone"
	ColCountry        = "Country"
	ColPassportID     = "Passport ID"
	ColAddress        = "Address"
	ColCourse         = "Course"
	ColBatch          = "Batch"
	ColJoinDate       = "Join Date"
	ColClassStartDate = "Class Start Date"
	ColStatus         = "Status"
	ColTotalFee       = "Total Course Fee"
	ColReferredBy     = "Referred By"
	ColReferralAmount = "Referral Amount"
	ColAdvanceAmount  = "Advance Amount"
	ColAdvanceMode    = "Advance Mode"
	ColAdvanceDate    = "Advance Date"
	ColSecondAmount   = "Second Amount"
	ColSecondMode     = "Second Mode"
	ColSecondDate     = "Second Date"
	ColThirdAmount    = "Third Amount"
	ColThirdMode      = "Third Mode"
	ColThirdDate      = "Third Date"
	ColFinalAmount    = "Final Amount"
	ColFinalMode      = "Final Mode"
	ColFinalDate      = "Final Date"
)

// TemplateHeaders lists the template columns in order.
var TemplateHeaders = []string{
	ColFullName, ColEmail, ColPhone, ColCountry, ColPassportID, ColAddress,
	ColCourse, ColBatch, ColJoinDate, ColClassStartDate, ColStatus, ColTotalFee,
	ColReferredBy, ColReferralAmount,
	ColAdvanceAmount, ColAdvanceMode, ColAdvanceDate,
	ColSecondAmount, ColSecondMode, ColSecondDate,
	ColThirdAmount, ColThirdMode, ColThirdDate,
	ColFinalAmount, ColFinalMode, ColFinalDate,
}

const studentSheet = "Students"

// Row is one parsed data row keyed by column header.
type Row map[string]string

// ParseRows reads an uploaded .xlsx or .csv file into header-keyed rows.
// The first non-empty line is treated as the header row. Empty lines are
// dropped; cell values are returned as the raw display strings so that
// date cells keep their serial or text form.
func ParseRows(r io.Reader, filename string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return parseWorkbook(r)
	case ".csv":
		return parseCSV(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

func parseWorkbook(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return recordsToRows(records)
}

func parseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return recordsToRows(records)
}

func recordsToRows(records [][]string) ([]Row, error) {
	var headers []string
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		if blankRecord(record) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(record))
			for i, h := range record {
				headers[i] = strings.TrimSpace(h)
			}
			continue
		}
		row := make(Row, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	if headers == nil {
		return nil, fmt.Errorf("file contains no header row")
	}
	return rows, nil
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// WriteTemplate builds the import template workbook: the student sheet
// with the canonical header row plus a reference sheet of known course
// titles operators can copy exact values from.
func WriteTemplate(courseTitles []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(f.GetSheetName(0), studentSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for i, header := range TemplateHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(studentSheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header %q: %w", header, err)
		}
	}

	const courseSheet = "Courses"
	if _, err := f.NewSheet(courseSheet); err != nil {
		return nil, fmt.Errorf("create course sheet: %w", err)
	}
	if err := f.SetCellValue(courseSheet, "A1", "Course Title"); err != nil {
		return nil, fmt.Errorf("write course header: %w", err)
	}
	for i, title := range courseTitles {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("course cell: %w", err)
		}
		if err := f.SetCellValue(courseSheet, cell, title); err != nil {
			return nil, fmt.Errorf("write course %q: %w", title, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("serialize template: %w", err)
	}
	return buf.Bytes(), nil
}
