package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantsignal/signal-scanner/internal/diagnostics"
	"github.com/quantsignal/signal-scanner/pkg/reporting"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// ReportSink renders events to the terminal and maintains a signal report
// file for the current run. The file is rewritten on every accepted
// signal, one file per day.
type ReportSink struct {
	dir    string
	format string // csv or xlsx

	console *reporting.ConsoleReporter
	writer  *reporting.CSVReporter

	mu      sync.Mutex
	signals []types.Signal
}

// NewReportSink creates a report sink writing into dir.
func NewReportSink(dir, format string) *ReportSink {
	if format != "xlsx" {
		format = "csv"
	}
	return &ReportSink{
		dir:     dir,
		format:  format,
		console: reporting.NewConsoleReporter(),
		writer:  reporting.NewCSVReporter(),
	}
}

// Name implements Sink.
func (r *ReportSink) Name() string { return "report" }

// Accept implements Sink.
func (r *ReportSink) Accept(_ context.Context, ev types.Event) error {
	switch ev := ev.(type) {
	case types.SignalEmitted:
		r.console.PrintSignal(ev.Signal)
		return r.appendSignal(ev.Signal)
	case types.TradeEvent:
		fmt.Printf("📈 %s %s @ %.4f (%+.2f%%) %s\n",
			ev.Symbol, ev.Kind, ev.Price, ev.PnLPct, ev.Note)
	case diagnostics.Report:
		r.console.PrintDiagnostics(ev)
	case types.OperationalAlert:
		fmt.Printf("⚠️  %s\n", ev.Text)
	}
	return nil
}

func (r *ReportSink) appendSignal(sig types.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)

	name := fmt.Sprintf("signals_%s.%s", time.Now().UTC().Format("2006-01-02"), r.format)
	return r.writer.WriteSignalsCSV(r.signals, filepath.Join(r.dir, name))
}
