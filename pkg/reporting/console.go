package reporting

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/quantsignal/signal-scanner/internal/diagnostics"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// ConsoleReporter renders signals and diagnostics as terminal tables.
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintSignal renders one emitted signal.
func (r *ConsoleReporter) PrintSignal(s types.Signal) {
	emoji := "🟢"
	if s.Direction == types.DirectionShort {
		emoji = "🔴"
	}
	fmt.Printf("%s %s %s [%s/%s] entry %.4f sl %.4f tp %.4f rr %.2f conf %d/5\n",
		emoji, s.Direction, s.Symbol, s.Strategy, s.Timeframe,
		s.Entry, s.StopLoss, s.TakeProfit, s.RiskReward, s.Confidence)
	fmt.Printf("   %s\n", s.Reasoning)
}

// PrintDiagnostics renders the diagnostic report as tables.
func (r *ConsoleReporter) PrintDiagnostics(rep diagnostics.Report) {
	fmt.Printf("\n📊 SCANNER DIAGNOSTICS (runtime %s)\n", rep.Runtime.Round(1e9))
	if !rep.LastSignalAt.IsZero() {
		fmt.Printf("🕐 Last signal: %s\n", rep.LastSignalAt.UTC().Format("2006-01-02 15:04:05"))
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Strategy", "Attempts", "Successes", "Rate"})
	for _, name := range sortedKeys(rep.AttemptsByStrategy) {
		attempts := rep.AttemptsByStrategy[name]
		successes := rep.SuccessesByStrategy[name]
		rate := 0.0
		if attempts > 0 {
			rate = float64(successes) / float64(attempts) * 100
		}
		t.AppendRow(table.Row{name, attempts, successes, fmt.Sprintf("%.1f%%", rate)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	if len(rep.RejectionsByReason) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Rejection Reason", "Count"})
		for _, reason := range sortedKeys(rep.RejectionsByReason) {
			t.AppendRow(table.Row{reason, rep.RejectionsByReason[reason]})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	}

	if len(rep.DataQualityByIssue) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Data Quality Issue", "Count"})
		for _, issue := range sortedKeys(rep.DataQualityByIssue) {
			t.AppendRow(table.Row{issue, rep.DataQualityByIssue[issue]})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	}

	for _, rec := range rep.Recommendations {
		fmt.Printf("💡 %s\n", rec)
	}
}

// PrintOpenTrades renders the open tracked trades.
func (r *ConsoleReporter) PrintOpenTrades(trades []types.TrackedTrade) {
	if len(trades) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Trade ID", "Symbol", "Direction", "Entry", "Stop", "TP", "Status", "Opened"})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.Signal.ID[:8],
			tr.Signal.Symbol,
			tr.Signal.Direction,
			fmt.Sprintf("%.4f", tr.Signal.Entry),
			fmt.Sprintf("%.4f", tr.StopPrice),
			fmt.Sprintf("%.4f", tr.Signal.TakeProfit),
			tr.Status,
			tr.OpenedAt.UTC().Format("01-02 15:04"),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
