package reporting

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// ExcelReporter writes emitted signals and trade events to a workbook.
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteSignalsXLSX writes the signals to a styled workbook.
func (r *ExcelReporter) WriteSignalsXLSX(signals []types.Signal, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const sheet = "Signals"
	fx.SetSheetName(fx.GetSheetName(0), sheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	headers := []string{
		"ID", "Created At", "Symbol", "Timeframe", "Direction", "Strategy",
		"Entry", "Stop Loss", "Take Profit", "R/R", "Confidence",
		"Confluence Factors", "Reasoning",
	}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return err
	}

	for i, s := range signals {
		row := i + 2
		values := []interface{}{
			s.ID,
			s.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			s.Symbol,
			string(s.Timeframe),
			string(s.Direction),
			s.Strategy,
			s.Entry,
			s.StopLoss,
			s.TakeProfit,
			fmt.Sprintf("%.2f", s.RiskReward),
			s.Confidence,
			strings.Join(s.ConfluenceFactors, ", "),
			s.Reasoning,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := fx.SetColWidth(sheet, "A", "A", 36); err != nil {
		return err
	}
	if err := fx.SetColWidth(sheet, "B", "M", 16); err != nil {
		return err
	}

	return fx.SaveAs(path)
}
