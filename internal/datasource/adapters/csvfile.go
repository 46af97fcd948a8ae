package adapters

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quantsignal/signal-scanner/internal/datasource"
	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// CSVColumnMapping describes where each field lives in a CSV row.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVFormat matches exported exchange kline dumps:
// timestamp,open,high,low,close,volume.
var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}

// CSVProvider serves candles from local CSV files, one file per
// symbol/timeframe pair under the data directory. It supports every asset
// class and is used for offline replays and as a last-resort backfill.
type CSVProvider struct {
	dir    string
	format CSVColumnMapping
}

// NewCSVProvider creates a file-backed provider rooted at dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir, format: DefaultCSVFormat}
}

// NewCSVProviderWithFormat creates a provider with a custom column layout.
func NewCSVProviderWithFormat(dir string, format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{dir: dir, format: format}
}

// Name implements datasource.Provider.
func (p *CSVProvider) Name() string { return "csvfile" }

// Supports implements datasource.Provider. Files can hold any instrument.
func (p *CSVProvider) Supports(types.AssetClass) bool { return true }

// Fetch implements datasource.Provider. The expected file name is
// <SYMBOL>_<timeframe>.csv, e.g. BTC_1h.csv.
func (p *CSVProvider) Fetch(_ context.Context, inst datasource.Instrument, tf types.Timeframe, count int) ([]types.Candle, error) {
	path := filepath.Join(p.dir, fmt.Sprintf("%s_%s.csv", strings.ToUpper(inst.Symbol), tf))
	candles, err := p.load(path)
	if err != nil {
		return nil, err
	}
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}

func (p *CSVProvider) load(path string) ([]types.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
				fmt.Sprintf("no data file at %s", path))
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil { // header
		return nil, scanerrors.NewInvalidDataError(p.Name(), fmt.Sprintf("reading CSV header: %v", err))
	}

	var candles []types.Candle
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, scanerrors.NewInvalidDataError(p.Name(),
				fmt.Sprintf("reading CSV at line %d: %v", line, err))
		}
		line++

		if len(record) < p.format.MinColumns {
			continue
		}
		ts, err := p.parseTimestamp(record[p.format.TimestampCol])
		if err != nil {
			continue
		}
		candle := types.Candle{Timestamp: ts}
		fields := []struct {
			col int
			dst *float64
		}{
			{p.format.OpenCol, &candle.Open},
			{p.format.HighCol, &candle.High},
			{p.format.LowCol, &candle.Low},
			{p.format.CloseCol, &candle.Close},
			{p.format.VolumeCol, &candle.Volume},
		}
		ok := true
		for _, fd := range fields {
			v, err := strconv.ParseFloat(record[fd.col], 64)
			if err != nil {
				ok = false
				break
			}
			*fd.dst = v
		}
		if ok {
			candles = append(candles, candle)
		}
	}
	return candles, nil
}

// parseTimestamp accepts the configured date format or epoch
// seconds/milliseconds.
func (p *CSVProvider) parseTimestamp(s string) (time.Time, error) {
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC(), nil
		}
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Parse(p.format.DateFormat, s)
}
