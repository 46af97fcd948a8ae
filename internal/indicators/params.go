package indicators

// VWAPReset selects where the cumulative VWAP restarts.
type VWAPReset string

const (
	// VWAPResetDaily restarts the accumulation at each UTC midnight.
	VWAPResetDaily VWAPReset = "daily"
	// VWAPResetSession restarts at the configured session start hour.
	VWAPResetSession VWAPReset = "session"
)

// StochasticParams configures the optional stochastic oscillator.
type StochasticParams struct {
	KPeriod int `json:"k_period" yaml:"k_period"`
	DPeriod int `json:"d_period" yaml:"d_period"`
	Smooth  int `json:"smooth" yaml:"smooth"`
}

// Params enumerates the indicator periods the enricher computes.
type Params struct {
	EMAFastPeriod  int `json:"ema_fast" yaml:"ema_fast"`
	EMASlowPeriod  int `json:"ema_slow" yaml:"ema_slow"`
	EMATrendPeriod int `json:"ema_trend" yaml:"ema_trend"`
	EMALongPeriod  int `json:"ema_long" yaml:"ema_long"`

	ATRPeriod      int `json:"atr_period" yaml:"atr_period"`
	ATRMAPeriod    int `json:"atr_ma_period" yaml:"atr_ma_period"`
	RSIPeriod      int `json:"rsi_period" yaml:"rsi_period"`
	ADXPeriod      int `json:"adx_period" yaml:"adx_period"`
	VolumeMAPeriod int `json:"volume_ma_period" yaml:"volume_ma_period"`

	Stochastic *StochasticParams `json:"stochastic,omitempty" yaml:"stochastic,omitempty"`

	VWAPReset        VWAPReset `json:"vwap_reset" yaml:"vwap_reset"`
	SessionStartHour int       `json:"session_start_hour" yaml:"session_start_hour"` // UTC, session reset only
}

// DefaultParams returns the standard swing parameter set.
func DefaultParams() Params {
	return Params{
		EMAFastPeriod:  9,
		EMASlowPeriod:  21,
		EMATrendPeriod: 50,
		EMALongPeriod:  200,
		ATRPeriod:      14,
		ATRMAPeriod:    20,
		RSIPeriod:      14,
		ADXPeriod:      14,
		VolumeMAPeriod: 20,
		VWAPReset:      VWAPResetDaily,
	}
}

// ScalpParams returns the faster parameter set used on sub-15m timeframes.
func ScalpParams() Params {
	p := DefaultParams()
	p.RSIPeriod = 6
	return p
}

// firstValidIndex returns the first buffer index at which every critical
// indicator has a defined value.
func (p Params) firstValidIndex() int {
	first := p.EMAFastPeriod - 1
	candidates := []int{
		p.EMASlowPeriod - 1,
		p.EMATrendPeriod - 1,
		2*p.ADXPeriod - 1,
		p.ATRPeriod - 1 + p.ATRMAPeriod - 1,
		p.RSIPeriod,
		p.VolumeMAPeriod - 1,
	}
	if p.Stochastic != nil {
		candidates = append(candidates, p.Stochastic.KPeriod-1+p.Stochastic.Smooth-1+p.Stochastic.DPeriod-1)
	}
	for _, c := range candidates {
		if c > first {
			first = c
		}
	}
	return first
}

// MinRows returns the smallest input buffer the enricher accepts for these
// params: enough history to warm every critical indicator plus the minimum
// enriched output length.
func (p Params) MinRows() int {
	return p.firstValidIndex() + minOutputRows
}
