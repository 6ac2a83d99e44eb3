package console

import (
	"fmt"
	"io"

	"github.com/erp/fulfillment/internal/application/fulfillment"
	appintegrity "github.com/erp/fulfillment/internal/application/integrity"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the generated workbooks
const (
	SheetSummary    = "Summary"
	SheetActions    = "Actions"
	SheetQuantities = "Quantities"
)

const defaultSheet = "Sheet1"

// maxSheetName is the sheet name length limit of the xlsx format
const maxSheetName = 31

var (
	summaryHeaders = []any{"Checker", "Title", "Status", "Mismatches", "Fixes", "Error"}
	actionHeaders  = []any{"Checker", "Action", "Table", "Target ID", "Stock unit ID", "Quantity", "SQL"}
)

// workbook wraps an excelize file with a bold header style
type workbook struct {
	file   *excelize.File
	header int
}

func newWorkbook(firstSheet string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, firstSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &workbook{file: f, header: header}, nil
}

func (wb *workbook) addSheet(name string) error {
	if _, err := wb.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return nil
}

// setRow writes values from column A of the given 1-based row
func (wb *workbook) setRow(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := wb.file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func (wb *workbook) setHeader(sheet string, values []any) error {
	if err := wb.setRow(sheet, 1, values); err != nil {
		return err
	}
	if err := wb.file.SetRowStyle(sheet, 1, 1, wb.header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return wb.file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// ReportWorkbook builds a workbook from an integrity report: a summary sheet, one sheet
// per checker that found mismatches and an actions sheet when fixes were built.
// The caller closes the returned file.
func ReportWorkbook(report *appintegrity.Report) (*excelize.File, error) {
	wb, err := newWorkbook(SheetSummary)
	if err != nil {
		return nil, err
	}
	if err := fillReport(wb, report); err != nil {
		_ = wb.file.Close()
		return nil, err
	}
	return wb.file, nil
}

func fillReport(wb *workbook, report *appintegrity.Report) error {
	if err := wb.setHeader(SheetSummary, summaryHeaders); err != nil {
		return err
	}
	var actions [][]any
	for i, c := range report.Checkers {
		errText := ""
		if c.Err != nil {
			errText = c.Err.Error()
		}
		row := []any{c.Name, c.Title, checkerStatus(c), len(c.Results), c.Fixed, errText}
		if err := wb.setRow(SheetSummary, i+2, row); err != nil {
			return err
		}
		for _, a := range c.Actions {
			actions = append(actions, []any{
				c.Name, string(a.Kind), a.Table(), a.TargetID.String(), a.UnitID.String(),
				quantityCell(a.Quantity), a.SQL(),
			})
		}
		if len(c.Results) > 0 {
			if err := addResultSheet(wb, c); err != nil {
				return err
			}
		}
	}

	if len(actions) == 0 {
		return nil
	}
	if err := wb.addSheet(SheetActions); err != nil {
		return err
	}
	if err := wb.setHeader(SheetActions, actionHeaders); err != nil {
		return err
	}
	for i, row := range actions {
		if err := wb.setRow(SheetActions, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func addResultSheet(wb *workbook, c appintegrity.CheckerReport) error {
	sheet := c.Name
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	if err := wb.addSheet(sheet); err != nil {
		return err
	}
	headers := make([]any, len(c.Columns))
	for i, col := range c.Columns {
		headers[i] = col.Label
	}
	if err := wb.setHeader(sheet, headers); err != nil {
		return err
	}
	for i, r := range c.Results {
		row := make([]any, len(c.Columns))
		for j, col := range c.Columns {
			row[j] = r.Values[col.Key]
		}
		if err := wb.setRow(sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// WriteReportXLSX writes the workbook of an integrity report to w
func WriteReportXLSX(w io.Writer, report *appintegrity.Report) error {
	f, err := ReportWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// QuantityMapWorkbook builds a one sheet workbook holding the ledger of every item of a
// sale. Quantities are numeric cells; unlimited quantities are written as INF.
// The caller closes the returned file.
func QuantityMapWorkbook(qm *fulfillment.QuantityMap) (*excelize.File, error) {
	wb, err := newWorkbook(SheetQuantities)
	if err != nil {
		return nil, err
	}
	if err := fillQuantityMap(wb, qm); err != nil {
		_ = wb.file.Close()
		return nil, err
	}
	return wb.file, nil
}

func fillQuantityMap(wb *workbook, qm *fulfillment.QuantityMap) error {
	headers := make([]any, len(quantityHeaders))
	for i, h := range quantityHeaders {
		headers[i] = h
	}
	if err := wb.setHeader(SheetQuantities, headers); err != nil {
		return err
	}
	for i, item := range qm.Items {
		row := []any{item.ItemID.String(), item.Designation}
		for _, q := range itemQuantities(item) {
			row = append(row, quantityCell(q))
		}
		if err := wb.setRow(SheetQuantities, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// WriteQuantityMapXLSX writes the workbook of a sale quantity map to w
func WriteQuantityMapXLSX(w io.Writer, qm *fulfillment.QuantityMap) error {
	f, err := QuantityMapWorkbook(qm)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func quantityCell(q valueobject.Quantity) any {
	if q.IsUnlimited() {
		return q.String()
	}
	return q.Float64()
}
