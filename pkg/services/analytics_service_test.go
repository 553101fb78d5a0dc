package services

import (
	"errors"
	"testing"

	"symptom-diary-api/pkg/models"

	"github.com/stretchr/testify/assert"
)

func summaryWithImportance(importance map[string]models.SymptomImportance, order []string) *models.ClinicalSummary {
	return &models.ClinicalSummary{
		Summary: models.CaseSummary{
			Symptoms: order,
			Severity: "Moderate, Worsening",
			Relevant: "Respiratory",
		},
		Importance:   importance,
		SymptomOrder: order,
	}
}

func TestComputeHighlights(t *testing.T) {
	analytics := NewAnalyticsService()

	summary := summaryWithImportance(map[string]models.SymptomImportance{
		"cough": {Flag: models.FlagHigh, Score: []float64{10, 20, 30}},
		"itch":  {Flag: models.FlagLow, Score: []float64{5, 5, 5}},
	}, []string{"cough", "itch"})

	highlights, err := analytics.ComputeHighlights(summary)
	assert.NoError(t, err)
	assert.Len(t, highlights, 2)

	// 累積スコアが高いcoughが先頭
	assert.Equal(t, "cough", highlights[0].Symptom)
	assert.Equal(t, models.TrendWorsening, highlights[0].Trend)
	assert.InDelta(t, 0.5, highlights[0].Rate, 1e-9) // (30-20)/20

	assert.Equal(t, "itch", highlights[1].Symptom)
	assert.Equal(t, models.TrendSteady, highlights[1].Trend)
	assert.Equal(t, 0.0, highlights[1].Rate)
}

func TestComputeHighlightsImproving(t *testing.T) {
	analytics := NewAnalyticsService()

	summary := summaryWithImportance(map[string]models.SymptomImportance{
		"swelling": {Flag: models.FlagMedium, Score: []float64{80, 40}},
	}, []string{"swelling"})

	highlights, err := analytics.ComputeHighlights(summary)
	assert.NoError(t, err)
	assert.Len(t, highlights, 1)
	assert.Equal(t, models.TrendImproving, highlights[0].Trend)
	assert.InDelta(t, -0.5, highlights[0].Rate, 1e-9)
}

func TestComputeHighlightsZeroPrevious(t *testing.T) {
	analytics := NewAnalyticsService()

	// previous == 0 かつ latest > 0: ゼロ除算せずWorsening扱い、rateは+1.0に丸める
	summary := summaryWithImportance(map[string]models.SymptomImportance{
		"fever": {Flag: models.FlagHigh, Score: []float64{0, 60}},
		"calm":  {Flag: models.FlagLow, Score: []float64{0, 0}},
	}, []string{"fever", "calm"})

	highlights, err := analytics.ComputeHighlights(summary)
	assert.NoError(t, err)
	assert.Equal(t, "fever", highlights[0].Symptom)
	assert.Equal(t, models.TrendWorsening, highlights[0].Trend)
	assert.Equal(t, 1.0, highlights[0].Rate)

	// previous == 0 かつ latest == 0: steady
	assert.Equal(t, "calm", highlights[1].Symptom)
	assert.Equal(t, models.TrendSteady, highlights[1].Trend)
	assert.Equal(t, 0.0, highlights[1].Rate)
}

func TestComputeHighlightsSinglePointIsSteady(t *testing.T) {
	analytics := NewAnalyticsService()

	// 1点しかない系列は比較対象がないためsteady
	summary := summaryWithImportance(map[string]models.SymptomImportance{
		"cough": {Flag: models.FlagHigh, Score: []float64{50}},
	}, []string{"cough"})

	highlights, err := analytics.ComputeHighlights(summary)
	assert.NoError(t, err)
	assert.Equal(t, models.TrendSteady, highlights[0].Trend)
	assert.Equal(t, 0.0, highlights[0].Rate)
}

func TestComputeHighlightsTieBreakByOrder(t *testing.T) {
	analytics := NewAnalyticsService()

	// 同点の場合は出現順が先のものを選ぶ
	summary := summaryWithImportance(map[string]models.SymptomImportance{
		"aaa": {Score: []float64{10, 10}},
		"bbb": {Score: []float64{10, 10}},
		"ccc": {Score: []float64{10, 10}},
	}, []string{"ccc", "aaa", "bbb"})

	highlights, err := analytics.ComputeHighlights(summary)
	assert.NoError(t, err)
	assert.Equal(t, "ccc", highlights[0].Symptom)
	assert.Equal(t, "aaa", highlights[1].Symptom)
}

func TestComputeHighlightsEmptyImportance(t *testing.T) {
	analytics := NewAnalyticsService()

	_, err := analytics.ComputeHighlights(&models.ClinicalSummary{})
	var analyticsErr *models.AnalyticsError
	assert.True(t, errors.As(err, &analyticsErr))
}

func TestBuildIntensityMatrix(t *testing.T) {
	analytics := NewAnalyticsService()

	summary := summaryWithImportance(map[string]models.SymptomImportance{
		"cough": {Score: []float64{10, 20, 30}},
		"itch":  {Score: []float64{5, 5, 5}},
	}, []string{"cough", "itch"})
	summary.Dates = []string{"2025-09-01", "2025-09-02", "2025-09-03"}

	matrix, err := analytics.BuildIntensityMatrix(summary)
	assert.NoError(t, err)

	// 行数 = 日数、列数 = 症状数
	assert.Len(t, matrix, 3)
	for _, row := range matrix {
		assert.Len(t, row, 2)
	}

	// 各値は症状数(2)で正規化される
	assert.Equal(t, 5.0, matrix[0][0])  // 10 / 2
	assert.Equal(t, 2.5, matrix[0][1])  // 5 / 2
	assert.Equal(t, 15.0, matrix[2][0]) // 30 / 2

	// 正規化不変条件: 各行の合計は 100 を超えない
	for _, row := range matrix {
		var sum float64
		for _, v := range row {
			sum += v
		}
		assert.LessOrEqual(t, sum, 100.0)
	}
}

func TestBuildIntensityMatrixRaggedSeries(t *testing.T) {
	analytics := NewAnalyticsService()

	summary := summaryWithImportance(map[string]models.SymptomImportance{
		"cough": {Score: []float64{10, 20, 30}},
		"itch":  {Score: []float64{5}},
	}, []string{"cough", "itch"})

	_, err := analytics.BuildIntensityMatrix(summary)
	var analyticsErr *models.AnalyticsError
	assert.True(t, errors.As(err, &analyticsErr))
}

func TestOrderedSymptomsFallback(t *testing.T) {
	analytics := NewAnalyticsService()

	// SymptomOrderのない手組みサマリーはsummary.symptomの順で補完する
	summary := &models.ClinicalSummary{
		Summary: models.CaseSummary{Symptoms: []string{"itch", "cough"}},
		Importance: map[string]models.SymptomImportance{
			"cough": {Score: []float64{10}},
			"itch":  {Score: []float64{5}},
		},
	}
	assert.Equal(t, []string{"itch", "cough"}, analytics.OrderedSymptoms(summary))
}
