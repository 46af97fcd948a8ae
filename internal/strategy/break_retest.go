package strategy

import (
	"fmt"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Break/retest window and confirmation thresholds.
const (
	breakVolumeRatio  = 1.5
	retestMinBarsAfter = 5
	retestMaxBarsAfter = 10
)

// BreakRetest trades a key-level break on volume followed by a respected
// retest of the broken level within the next few bars.
type BreakRetest struct{}

// NewBreakRetest creates the detector.
func NewBreakRetest() *BreakRetest {
	return &BreakRetest{}
}

// Name returns the registry key.
func (s *BreakRetest) Name() string { return NameBreakRetest }

// MinHistory returns the required enriched history.
func (s *BreakRetest) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *BreakRetest) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	n := len(buffer)
	last := buffer[n-1]

	for _, lvl := range keyLevels(buffer, p.RoundUnit) {
		// Look for a break bar in the retest window behind the last bar.
		for back := retestMinBarsAfter; back <= retestMaxBarsAfter && back < n-1; back++ {
			i := n - 1 - back
			bar := buffer[i]
			prev := buffer[i-1]
			if bar.VolumeRatio() < breakVolumeRatio {
				continue
			}

			brokeUp := prev.Close <= lvl.Price && bar.Close > lvl.Price
			brokeDown := prev.Close >= lvl.Price && bar.Close < lvl.Price
			if !brokeUp && !brokeDown {
				continue
			}

			// A failed retest, a later close back through the level, kills
			// the setup.
			failed := false
			for j := i + 1; j < n; j++ {
				if brokeUp && buffer[j].Close < lvl.Price {
					failed = true
					break
				}
				if brokeDown && buffer[j].Close > lvl.Price {
					failed = true
					break
				}
			}
			if failed {
				continue
			}

			// The retest: the last bar returned into tolerance of the level
			// and respected it.
			if brokeUp && pctDistance(last.Low, lvl.Price) <= p.LevelTolerancePct && last.Close > lvl.Price {
				entry := last.Close
				sig := newSignal(ctx, buffer, s.Name(), types.DirectionLong,
					entry, lvl.Price-srStopATR*last.ATR, entry+p.TPDayMult*last.ATR,
					s.confidence(bar, lvl), []string{"level_break", "volume_break", "retest_respected"},
					fmt.Sprintf("broke %.4f on %.1fx volume, retest held", lvl.Price, bar.VolumeRatio()))
				sig.Metadata[MetadataHoldPeriod] = HoldMultiDay
				return validated(sig), nil
			}
			if brokeDown && pctDistance(last.High, lvl.Price) <= p.LevelTolerancePct && last.Close < lvl.Price {
				entry := last.Close
				sig := newSignal(ctx, buffer, s.Name(), types.DirectionShort,
					entry, lvl.Price+srStopATR*last.ATR, entry-p.TPDayMult*last.ATR,
					s.confidence(bar, lvl), []string{"level_break", "volume_break", "retest_respected"},
					fmt.Sprintf("broke %.4f on %.1fx volume, retest held", lvl.Price, bar.VolumeRatio()))
				sig.Metadata[MetadataHoldPeriod] = HoldMultiDay
				return validated(sig), nil
			}
		}
	}
	return nil, nil
}

func (s *BreakRetest) confidence(breakBar types.EnrichedCandle, lvl Level) int {
	conf := 3
	if breakBar.VolumeRatio() >= 2.0 {
		conf++
	}
	if lvl.Round {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}
