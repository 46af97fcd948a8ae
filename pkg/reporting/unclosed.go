package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// UnclosedTradesReport serializes the trades still open at shutdown so a
// restart (or an operator) can pick them up.
type UnclosedTradesReport struct {
	Scanner     string               `json:"scanner"`
	GeneratedAt time.Time            `json:"generated_at"`
	Trades      []types.TrackedTrade `json:"trades"`
}

// WriteUnclosedTrades writes the report as indented JSON under dir.
func WriteUnclosedTrades(scanner string, trades []types.TrackedTrade, dir string) (string, error) {
	report := UnclosedTradesReport{
		Scanner:     scanner,
		GeneratedAt: time.Now().UTC(),
		Trades:      trades,
	}

	path := filepath.Join(dir, fmt.Sprintf("unclosed_trades_%s_%s.json",
		scanner, report.GeneratedAt.Format("20060102_150405")))
	if err := ensureDir(path); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadUnclosedTrades loads a previously written report.
func ReadUnclosedTrades(path string) (*UnclosedTradesReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report UnclosedTradesReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing unclosed trades report %s: %w", path, err)
	}
	return &report, nil
}
