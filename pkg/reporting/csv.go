package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// CSVReporter writes emitted signals to CSV files.
type CSVReporter struct{}

// NewCSVReporter creates a new CSV reporter.
func NewCSVReporter() *CSVReporter {
	return &CSVReporter{}
}

// WriteSignalsCSV writes emitted signals to a CSV file. An .xlsx path
// delegates to the Excel writer.
func (r *CSVReporter) WriteSignalsCSV(signals []types.Signal, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return NewExcelReporter().WriteSignalsXLSX(signals, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"ID",
		"Created_At",
		"Symbol",
		"Timeframe",
		"Direction",
		"Strategy",
		"Entry",
		"Stop_Loss",
		"Take_Profit",
		"Risk_Reward",
		"Confidence",
		"Confluence_Factors",
		"Reasoning",
	}); err != nil {
		return err
	}

	for _, s := range signals {
		if err := w.Write([]string{
			s.ID,
			s.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			s.Symbol,
			string(s.Timeframe),
			string(s.Direction),
			s.Strategy,
			strconv.FormatFloat(s.Entry, 'f', -1, 64),
			strconv.FormatFloat(s.StopLoss, 'f', -1, 64),
			strconv.FormatFloat(s.TakeProfit, 'f', -1, 64),
			fmt.Sprintf("%.2f", s.RiskReward),
			strconv.Itoa(s.Confidence),
			strings.Join(s.ConfluenceFactors, "|"),
			s.Reasoning,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ensureDir creates the parent directory of path if needed.
func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
