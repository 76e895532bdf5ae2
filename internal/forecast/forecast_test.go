package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurix/reconciler/internal/ledger"
)

func testForecaster() *Forecaster {
	return New(zerolog.Nop())
}

func rec(date time.Time, code float64, net float64, source ledger.Source) ledger.Record {
	return ledger.Record{Date: date, AccountCode: code, Net: net, Source: source}
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestAggregateMonthlyBuckets(t *testing.T) {
	jan := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, time.February, 3, 0, 0, 0, 0, time.UTC)

	manual := []ledger.Record{
		rec(jan, 1001, 500, ledger.SourceManual),
		rec(jan, 1001, 200, ledger.SourceManual),
		rec(feb, 1001, 300, ledger.SourceManual),
	}
	erp := []ledger.Record{
		rec(jan, 1001, 700, ledger.SourceERP), // matches january exactly
		rec(feb, 1001, 100, ledger.SourceERP),
		rec(feb, 2002, 50, ledger.SourceERP), // ERP-only account
	}

	monthly := testForecaster().AggregateMonthly(manual, erp)
	require.Len(t, monthly, 2)

	assert.Equal(t, "2024-01", monthly[0].Label)
	assert.Equal(t, month(2024, time.January), monthly[0].Month)
	assert.Equal(t, 1, monthly[0].TotalAccounts)
	assert.Equal(t, 1, monthly[0].MatchedCount)
	assert.Equal(t, 0, monthly[0].VarianceCount)
	assert.InDelta(t, 0.0, monthly[0].TotalNetVariance, 1e-9)
	assert.InDelta(t, 100.0, monthly[0].MatchRate, 1e-9)

	assert.Equal(t, "2024-02", monthly[1].Label)
	assert.Equal(t, 2, monthly[1].TotalAccounts)
	assert.Equal(t, 0, monthly[1].MatchedCount)
	assert.Equal(t, 2, monthly[1].VarianceCount)
	// 1001: 300-100=200, 2002: 0-50=-50
	assert.InDelta(t, 250.0, monthly[1].TotalAbsVariance, 1e-9)
	assert.InDelta(t, 150.0, monthly[1].TotalNetVariance, 1e-9)
	assert.InDelta(t, 0.0, monthly[1].MatchRate, 1e-9)
}

func TestAggregateMonthlySkipsRecordsWithoutAccountCode(t *testing.T) {
	jan := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	manual := []ledger.Record{
		rec(jan, math.NaN(), 9999, ledger.SourceManual),
		rec(jan, 1001, 100, ledger.SourceManual),
	}

	monthly := testForecaster().AggregateMonthly(manual, nil)
	require.Len(t, monthly, 1)
	assert.Equal(t, 1, monthly[0].TotalAccounts)
	assert.InDelta(t, 100.0, monthly[0].TotalAbsVariance, 1e-9)
}

func TestAggregateMonthlyNaNNetCountsAsZero(t *testing.T) {
	jan := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	// An account whose only cells are unparseable still participates
	// with a net of zero, the same as summing an all-NaN column.
	manual := []ledger.Record{rec(jan, 1001, math.NaN(), ledger.SourceManual)}

	monthly := testForecaster().AggregateMonthly(manual, nil)
	require.Len(t, monthly, 1)
	assert.Equal(t, 1, monthly[0].TotalAccounts)
	assert.Equal(t, 1, monthly[0].MatchedCount)
	assert.InDelta(t, 0.0, monthly[0].TotalAbsVariance, 1e-9)
}

func TestForecastLinearInsufficientData(t *testing.T) {
	monthly := []MonthlyVariance{
		{Month: month(2024, time.January), Label: "2024-01", TotalAbsVariance: 100},
		{Month: month(2024, time.February), Label: "2024-02", TotalAbsVariance: 200},
	}

	result, err := testForecaster().ForecastLinear(monthly, ColumnTotalAbsVariance, 3)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestForecastLinearUnknownColumn(t *testing.T) {
	monthly := []MonthlyVariance{
		{Month: month(2024, time.January)},
		{Month: month(2024, time.February)},
		{Month: month(2024, time.March)},
	}

	_, err := testForecaster().ForecastLinear(monthly, "median_variance", 3)
	assert.Error(t, err)
}

func TestForecastLinearIncreasingTrend(t *testing.T) {
	monthly := []MonthlyVariance{
		{Month: month(2024, time.January), Label: "2024-01", TotalAbsVariance: 100},
		{Month: month(2024, time.February), Label: "2024-02", TotalAbsVariance: 200},
		{Month: month(2024, time.March), Label: "2024-03", TotalAbsVariance: 300},
		{Month: month(2024, time.April), Label: "2024-04", TotalAbsVariance: 400},
	}

	result, err := testForecaster().ForecastLinear(monthly, ColumnTotalAbsVariance, 3)
	require.NoError(t, err)

	assert.Equal(t, "increasing", result.Trend)
	assert.InDelta(t, 100.0, result.Slope, 1e-9)
	assert.InDelta(t, 1.0, result.RSquared, 1e-9)

	require.Len(t, result.Historical, 4)
	assert.Equal(t, "2024-01", result.Historical[0].Month)
	assert.InDelta(t, 100.0, result.Historical[0].Value, 1e-9)

	require.Len(t, result.Forecast, 3)
	assert.Equal(t, "2024-05", result.Forecast[0].Month)
	assert.Equal(t, "2024-06", result.Forecast[1].Month)
	assert.Equal(t, "2024-07", result.Forecast[2].Month)
	assert.InDelta(t, 500.0, result.Forecast[0].Value, 1e-9)
	assert.InDelta(t, 700.0, result.Forecast[2].Value, 1e-9)
}

func TestForecastLinearDecreasingFlooredAtZero(t *testing.T) {
	monthly := []MonthlyVariance{
		{Month: month(2024, time.January), Label: "2024-01", TotalAbsVariance: 300},
		{Month: month(2024, time.February), Label: "2024-02", TotalAbsVariance: 200},
		{Month: month(2024, time.March), Label: "2024-03", TotalAbsVariance: 100},
	}

	result, err := testForecaster().ForecastLinear(monthly, ColumnTotalAbsVariance, 3)
	require.NoError(t, err)

	assert.Equal(t, "decreasing", result.Trend)
	// The line hits zero at month index 3 and would go negative after.
	assert.InDelta(t, 0.0, result.Forecast[0].Value, 1e-9)
	assert.InDelta(t, 0.0, result.Forecast[1].Value, 1e-9)
	assert.InDelta(t, 0.0, result.Forecast[2].Value, 1e-9)
}

func TestForecastLinearStableTrend(t *testing.T) {
	monthly := []MonthlyVariance{
		{Month: month(2024, time.January), Label: "2024-01", TotalAbsVariance: 1000.0},
		{Month: month(2024, time.February), Label: "2024-02", TotalAbsVariance: 1002.0},
		{Month: month(2024, time.March), Label: "2024-03", TotalAbsVariance: 1004.0},
	}

	result, err := testForecaster().ForecastLinear(monthly, ColumnTotalAbsVariance, 1)
	require.NoError(t, err)

	// Slope of 2 per month is under 1% of the mean level.
	assert.Equal(t, "stable", result.Trend)
}

func TestForecastLinearMatchRateColumn(t *testing.T) {
	monthly := []MonthlyVariance{
		{Month: month(2024, time.January), Label: "2024-01", MatchRate: 90},
		{Month: month(2024, time.February), Label: "2024-02", MatchRate: 80},
		{Month: month(2024, time.March), Label: "2024-03", MatchRate: 70},
	}

	result, err := testForecaster().ForecastLinear(monthly, ColumnMatchRate, 2)
	require.NoError(t, err)

	assert.Equal(t, "decreasing", result.Trend)
	assert.InDelta(t, 60.0, result.Forecast[0].Value, 1e-9)
	assert.InDelta(t, 50.0, result.Forecast[1].Value, 1e-9)
}
