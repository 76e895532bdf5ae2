package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurix/reconciler/internal/ledger"
	"github.com/aurix/reconciler/pkg/formulas"
)

// ErrInsufficientData marks a forecast request with too little history.
// Callers must check for it; it is an expected result, not a failure.
var ErrInsufficientData = errors.New("insufficient data: need at least 3 months")

// matchedTolerance is the fixed tolerance used only for the matched
// count inside monthly aggregation.
const matchedTolerance = 1.0

// Forecastable column names accepted by ForecastLinear.
const (
	ColumnTotalAbsVariance = "total_abs_variance"
	ColumnTotalNetVariance = "total_net_variance"
	ColumnMatchRate        = "match_rate"
)

// MonthlyVariance aggregates account-level variance for one calendar month.
type MonthlyVariance struct {
	Month            time.Time `json:"-"`
	Label            string    `json:"month"` // YYYY-MM
	TotalAbsVariance float64   `json:"total_abs_variance"`
	TotalNetVariance float64   `json:"total_net_variance"`
	VarianceCount    int       `json:"variance_count"`
	MatchedCount     int       `json:"matched_count"`
	TotalAccounts    int       `json:"total_coa"`
	MatchRate        float64   `json:"match_rate"`
}

// Point is one month's observed or projected value.
type Point struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// Result is a fitted linear trend with projections.
type Result struct {
	Historical []Point `json:"historical"`
	Forecast   []Point `json:"forecast"`
	Trend      string  `json:"trend_direction"` // stable, increasing, decreasing
	Slope      float64 `json:"slope"`
	RSquared   float64 `json:"r_squared"`
}

// Forecaster projects variance trends from monthly aggregations.
type Forecaster struct {
	log zerolog.Logger
}

// New creates a forecaster.
func New(log zerolog.Logger) *Forecaster {
	return &Forecaster{log: log.With().Str("component", "forecaster").Logger()}
}

// AggregateMonthly buckets both cleaned tables by calendar month and
// computes per-month variance metrics, reusing the account-level
// aggregate-merge arithmetic with a fixed tolerance for the matched
// count. Months present in either source appear, sorted ascending.
func (f *Forecaster) AggregateMonthly(manual, erp []ledger.Record) []MonthlyVariance {
	months := map[time.Time]bool{}
	manualByMonth := bucketByMonth(manual)
	erpByMonth := bucketByMonth(erp)
	for m := range manualByMonth {
		months[m] = true
	}
	for m := range erpByMonth {
		months[m] = true
	}

	ordered := make([]time.Time, 0, len(months))
	for m := range months {
		ordered = append(ordered, m)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	results := make([]MonthlyVariance, 0, len(ordered))
	for _, month := range ordered {
		mv := MonthlyVariance{
			Month: month,
			Label: month.Format("2006-01"),
		}

		manualNets := netByAccount(manualByMonth[month])
		erpNets := netByAccount(erpByMonth[month])

		for _, code := range unionKeys(manualNets, erpNets) {
			netVariance := manualNets[code] - erpNets[code]
			abs := math.Abs(netVariance)

			mv.TotalAbsVariance += abs
			mv.TotalNetVariance += netVariance
			mv.TotalAccounts++
			if abs <= matchedTolerance {
				mv.MatchedCount++
			} else {
				mv.VarianceCount++
			}
		}

		if mv.TotalAccounts > 0 {
			mv.MatchRate = float64(mv.MatchedCount) / float64(mv.TotalAccounts) * 100
		}
		results = append(results, mv)
	}
	return results
}

// ForecastLinear fits an ordinary least-squares line to the chosen
// column and projects it periodsAhead months forward. Projections are
// floored at zero; variance and match rate cannot go negative.
func (f *Forecaster) ForecastLinear(monthly []MonthlyVariance, column string, periodsAhead int) (*Result, error) {
	if len(monthly) < 3 {
		return nil, ErrInsufficientData
	}

	extract, err := columnExtractor(column)
	if err != nil {
		return nil, err
	}

	x := make([]float64, len(monthly))
	y := make([]float64, len(monthly))
	for i, mv := range monthly {
		x[i] = float64(i)
		y[i] = extract(mv)
	}

	fit := formulas.FitLinear(x, y)

	trend := "stable"
	if math.Abs(fit.Beta) >= formulas.Mean(y)*0.01 {
		if fit.Beta > 0 {
			trend = "increasing"
		} else {
			trend = "decreasing"
		}
	}

	result := &Result{
		Trend:    trend,
		Slope:    fit.Beta,
		RSquared: fit.RSquared,
	}

	for i, mv := range monthly {
		result.Historical = append(result.Historical, Point{Month: mv.Label, Value: y[i]})
	}

	last := monthly[len(monthly)-1].Month
	for j := 1; j <= periodsAhead; j++ {
		value := fit.Predict(float64(len(monthly) - 1 + j))
		result.Forecast = append(result.Forecast, Point{
			Month: last.AddDate(0, j, 0).Format("2006-01"),
			Value: math.Max(0, value),
		})
	}

	f.log.Debug().
		Str("column", column).
		Str("trend", trend).
		Float64("slope", fit.Beta).
		Msg("Linear forecast computed")
	return result, nil
}

func columnExtractor(column string) (func(MonthlyVariance) float64, error) {
	switch column {
	case ColumnTotalAbsVariance:
		return func(mv MonthlyVariance) float64 { return mv.TotalAbsVariance }, nil
	case ColumnTotalNetVariance:
		return func(mv MonthlyVariance) float64 { return mv.TotalNetVariance }, nil
	case ColumnMatchRate:
		return func(mv MonthlyVariance) float64 { return mv.MatchRate }, nil
	default:
		return nil, fmt.Errorf("unknown forecast column %q", column)
	}
}

// bucketByMonth groups records by the first day of their calendar month.
func bucketByMonth(records []ledger.Record) map[time.Time][]ledger.Record {
	buckets := map[time.Time][]ledger.Record{}
	for _, rec := range records {
		month := time.Date(rec.Date.Year(), rec.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		buckets[month] = append(buckets[month], rec)
	}
	return buckets
}

// netByAccount sums the signed mutation value per account code,
// skipping records without a usable code and NaN cells.
func netByAccount(records []ledger.Record) map[int64]float64 {
	nets := map[int64]float64{}
	for _, rec := range records {
		if !rec.HasAccountCode() {
			continue
		}
		if _, ok := nets[rec.Code()]; !ok {
			nets[rec.Code()] = 0
		}
		if !math.IsNaN(rec.Net) {
			nets[rec.Code()] += rec.Net
		}
	}
	return nets
}

func unionKeys(a, b map[int64]float64) []int64 {
	seen := map[int64]bool{}
	keys := make([]int64, 0, len(a)+len(b))
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
