package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
)

const (
	PREDICTIONS_FILE         = "predictions.csv"
	ACTUALS_FILE             = "actuals.csv"
	PERFORMANCE_SUMMARY_FILE = "performance_summary.csv"
	PROVIDER_COMPARISON_FILE = "provider_comparison.csv"
	MORNING_CHECKS_FILE      = "morning_soc_checks.csv"

	timestampLayout = "2006-01-02 15:04:05"
	notAvailable    = "N/A"
)

var predictionHeader = []string{
	"Prediction Date",
	"Logged At",
	"Forecast (Wh)",
	"Forecast (kWh)",
	"Solar Coverage (%)",
	"Current SOC (%)",
	"Target SOC (%)",
	"Expected SOC Increase (%)",
	"Charge Rate Set (%)",
	"Off-Peak Window",
	"Battery Capacity (Wh)",
	"Avg Load (W)",
	"Daily Consumption (Wh)",
}

var actualHeader = []string{
	"Date",
	"Logged At",
	"Actual Generation (Wh)",
	"Actual Generation (kWh)",
	"SOC at Evening (%)",
	"SOC at Morning (%)",
	"Actual SOC Increase (%)",
	"Charge Energy (Wh)",
	"Charge Energy (kWh)",
	"Notes",
}

var summaryHeader = []string{
	"Date",
	"Forecast (kWh)",
	"Actual (kWh)",
	"Accuracy (%)",
	"Error (kWh)",
	"Solar Coverage Predicted (%)",
	"Target SOC (%)",
	"Expected SOC Increase (%)",
	"Actual SOC Increase (%)",
	"Charge Rate Set (%)",
	"Charge Energy (kWh)",
	"Charge Efficiency (%)",
	"SOC at Evening (%)",
	"Performance",
}

var morningHeader = []string{
	"Date",
	"Check Time",
	"Target SOC (%)",
	"Actual SOC (%)",
	"Variance (%)",
	"Charge Rate Set (%)",
	"Achievement (%)",
	"Status",
}

// DataLog keeps the prediction and outcome history as CSV files in one
// directory. Files are created with a header on first write.
type DataLog struct {
	dir       string
	providers []string
	loc       *time.Location

	mu sync.Mutex
}

var _ port.DataLog = (*DataLog)(nil)

// New creates the output directory. providers fixes the per-provider
// columns of the comparison file.
func New(dir string, providers []string, loc *time.Location) (*DataLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &DataLog{dir: dir, providers: providers, loc: loc}, nil
}

func (l *DataLog) path(name string) string {
	return filepath.Join(l.dir, name)
}

func (l *DataLog) append(name string, header []string, row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path(name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// read returns the rows of a file as header keyed maps. A missing file has
// no rows.
func (l *DataLog) read(name string) ([]map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (l *DataLog) LogPrediction(rec domain.PredictionRecord) error {
	return l.append(PREDICTIONS_FILE, predictionHeader, []string{
		rec.PredictionDate.Format(domain.DateLayout),
		rec.LoggedAt.Format(timestampLayout),
		strconv.Itoa(int(rec.ForecastWh)),
		fixed(rec.ForecastWh/1000, 2),
		fixed(rec.SolarCoveragePct, 1),
		strconv.Itoa(rec.CurrentSOC),
		strconv.Itoa(rec.TargetSOC),
		strconv.Itoa(rec.ExpectedSOCIncrease),
		strconv.Itoa(rec.ChargeRatePct),
		rec.OffPeakWindow,
		fixed(rec.BatteryCapacityWh, 0),
		fixed(rec.AverageLoadW, 0),
		strconv.Itoa(int(rec.DailyConsumptionWh)),
	})
}

// LogActual leaves optional and zero values blank.
func (l *DataLog) LogActual(rec domain.ActualRecord) error {
	row := []string{
		rec.Date.Format(domain.DateLayout),
		rec.LoggedAt.Format(timestampLayout),
		strconv.Itoa(int(rec.GenerationWh)),
		fixed(rec.GenerationWh/1000, 2),
		"", "", "", "", "",
		rec.Notes,
	}
	if rec.SOCEvening != 0 {
		row[4] = strconv.Itoa(rec.SOCEvening)
	}
	if rec.SOCMorning != nil && *rec.SOCMorning != 0 {
		row[5] = strconv.Itoa(*rec.SOCMorning)
	}
	if rec.SOCIncrease != nil && *rec.SOCIncrease != 0 {
		row[6] = fixed(*rec.SOCIncrease, 1)
	}
	if rec.ChargeWh != 0 {
		row[7] = strconv.Itoa(int(rec.ChargeWh))
		row[8] = fixed(rec.ChargeWh/1000, 2)
	}
	return l.append(ACTUALS_FILE, actualHeader, row)
}

func (l *DataLog) comparisonHeader() []string {
	header := []string{"Date", "Logged At", "Primary Provider"}
	for _, p := range l.providers {
		header = append(header, p+" Forecast (kWh)")
	}
	return append(header, "Variance (%)")
}

// LogProviderComparison writes one kWh column per configured provider, N/A
// for failures, and the spread between the highest and lowest forecast.
func (l *DataLog) LogProviderComparison(rec domain.ProviderComparisonRecord) error {
	byName := map[string]domain.ProviderForecast{}
	for _, f := range rec.Forecasts {
		byName[f.Provider] = f
	}
	row := []string{rec.Date.Format(domain.DateLayout), rec.LoggedAt.Format(timestampLayout), rec.Primary}
	for _, p := range l.providers {
		f, ok := byName[p]
		if !ok || !f.OK() {
			row = append(row, notAvailable)
			continue
		}
		row = append(row, fixed(f.Wh/1000, 2))
	}
	row = append(row, providerVariance(rec.Forecasts))
	return l.append(PROVIDER_COMPARISON_FILE, l.comparisonHeader(), row)
}

func providerVariance(forecasts []domain.ProviderForecast) string {
	lo, hi, n := math.Inf(1), math.Inf(-1), 0
	for _, f := range forecasts {
		if !f.OK() {
			continue
		}
		lo, hi = math.Min(lo, f.Wh), math.Max(hi, f.Wh)
		n++
	}
	if n < 2 || hi <= 0 {
		return notAvailable
	}
	return fixed((hi-lo)/hi*100, 1)
}

func (l *DataLog) LogMorningCheck(rec domain.MorningCheckRecord) error {
	return l.append(MORNING_CHECKS_FILE, morningHeader, []string{
		rec.Date.Format(domain.DateLayout),
		rec.CheckedAt.Format(timestampLayout),
		strconv.Itoa(rec.TargetSOC),
		strconv.Itoa(rec.ActualSOC),
		strconv.Itoa(rec.Variance),
		strconv.Itoa(rec.ChargeRatePct),
		fixed(rec.Achievement, 1),
		rec.Status,
	})
}

func (l *DataLog) Predictions() ([]domain.PredictionRecord, error) {
	rows, err := l.read(PREDICTIONS_FILE)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PredictionRecord, 0, len(rows))
	for i, row := range rows {
		p := parser{row: row, loc: l.loc}
		rec := domain.PredictionRecord{
			PredictionDate:      p.date("Prediction Date"),
			LoggedAt:            p.timestamp("Logged At"),
			ForecastWh:          p.decimal("Forecast (Wh)"),
			SolarCoveragePct:    p.decimal("Solar Coverage (%)"),
			CurrentSOC:          p.integer("Current SOC (%)"),
			TargetSOC:           p.integer("Target SOC (%)"),
			ExpectedSOCIncrease: p.integer("Expected SOC Increase (%)"),
			ChargeRatePct:       p.integer("Charge Rate Set (%)", "Charge Rate (%)"),
			OffPeakWindow:       row["Off-Peak Window"],
			BatteryCapacityWh:   p.decimal("Battery Capacity (Wh)"),
			AverageLoadW:        p.decimal("Avg Load (W)"),
			DailyConsumptionWh:  p.decimal("Daily Consumption (Wh)"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", PREDICTIONS_FILE, i+2, p.err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// PredictionFor returns the latest prediction logged for date, or nil.
func (l *DataLog) PredictionFor(date time.Time) (*domain.PredictionRecord, error) {
	preds, err := l.Predictions()
	if err != nil {
		return nil, err
	}
	for i := len(preds) - 1; i >= 0; i-- {
		if domain.SameDate(preds[i].PredictionDate, date) {
			return &preds[i], nil
		}
	}
	return nil, nil
}

func (l *DataLog) Actuals() ([]domain.ActualRecord, error) {
	rows, err := l.read(ACTUALS_FILE)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActualRecord, 0, len(rows))
	for i, row := range rows {
		p := parser{row: row, loc: l.loc}
		rec := domain.ActualRecord{
			Date:         p.date("Date"),
			LoggedAt:     p.timestamp("Logged At"),
			GenerationWh: p.decimal("Actual Generation (Wh)"),
			SOCEvening:   p.integer("SOC at Evening (%)"),
			SOCMorning:   p.optionalInt("SOC at Morning (%)"),
			SOCIncrease:  p.optionalFloat("Actual SOC Increase (%)"),
			ChargeWh:     p.decimal("Charge Energy (Wh)"),
			Notes:        row["Notes"],
		}
		if p.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", ACTUALS_FILE, i+2, p.err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// WritePerformanceSummary replaces the summary file.
func (l *DataLog) WritePerformanceSummary(rows []domain.PerformanceRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tmp, err := os.CreateTemp(l.dir, PERFORMANCE_SUMMARY_FILE+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(summaryHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, r := range rows {
		if err := w.Write(summaryRow(r)); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), l.path(PERFORMANCE_SUMMARY_FILE))
}

func summaryRow(r domain.PerformanceRow) []string {
	row := []string{
		r.Date.Format(domain.DateLayout),
		fixed(r.ForecastWh/1000, 2),
		notAvailable,
		notAvailable,
		notAvailable,
		fixed(r.SolarCoveragePct, 1),
		strconv.Itoa(r.TargetSOC),
		strconv.Itoa(r.ExpectedSOCIncrease),
		notAvailable,
		strconv.Itoa(r.ChargeRatePct),
		notAvailable,
		notAvailable,
		notAvailable,
		r.Rating,
	}
	if r.Pending() {
		return row
	}
	row[2] = fixed(*r.ActualWh/1000, 2)
	row[3] = fixed(*r.AccuracyPct, 1)
	row[4] = fixed(*r.ErrorWh/1000, 2)
	row[8] = optional(r.ActualSOCIncrease, 1)
	row[10] = optional(r.ChargeWh, 2, 1000)
	row[11] = optional(r.ChargeEfficiencyPct, 1)
	row[12] = ""
	if r.SOCEvening != nil && *r.SOCEvening != 0 {
		row[12] = strconv.Itoa(*r.SOCEvening)
	}
	return row
}

func fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// optional formats v, divided by an optional scale, or blank when unset or
// zero.
func optional(v *float64, decimals int, scale ...float64) string {
	if v == nil || *v == 0 {
		return ""
	}
	x := *v
	for _, s := range scale {
		x /= s
	}
	return fixed(x, decimals)
}

// parser reads typed values from a CSV row and remembers the first error.
type parser struct {
	row map[string]string
	loc *time.Location
	err error
}

func (p *parser) value(cols ...string) string {
	for _, c := range cols {
		if v, ok := p.row[c]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (p *parser) fail(col string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %q: %w", col, err)
	}
}

func (p *parser) date(col string) time.Time {
	t, err := time.ParseInLocation(domain.DateLayout, p.value(col), p.loc)
	if err != nil {
		p.fail(col, err)
	}
	return t
}

func (p *parser) timestamp(col string) time.Time {
	v := p.value(col)
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timestampLayout, v, p.loc)
	if err != nil {
		p.fail(col, err)
	}
	return t
}

func (p *parser) decimal(cols ...string) float64 {
	v := p.value(cols...)
	if v == "" || v == notAvailable {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(cols[0], err)
	}
	return f
}

func (p *parser) integer(cols ...string) int {
	return int(math.Round(p.decimal(cols...)))
}

func (p *parser) optionalFloat(col string) *float64 {
	if v := p.value(col); v == "" || v == notAvailable {
		return nil
	}
	f := p.decimal(col)
	return &f
}

func (p *parser) optionalInt(col string) *int {
	f := p.optionalFloat(col)
	if f == nil {
		return nil
	}
	i := int(math.Round(*f))
	return &i
}
