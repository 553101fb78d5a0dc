package services

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStackedBars(t *testing.T) {
	chart := NewChartService()

	data, err := chart.RenderStackedBars(
		[]string{"2025-09-01", "2025-09-02", "2025-09-03"},
		[]string{"cough", "itch"},
		[][]float64{{5, 2.5}, {10, 2.5}, {15, 2.5}},
	)
	require.NoError(t, err)

	// 出力が指定サイズのPNGとしてデコードできること
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, chartWidth, bounds.Dx())
	assert.Equal(t, chartHeight, bounds.Dy())
}

func TestRenderStackedBarsManySymptoms(t *testing.T) {
	chart := NewChartService()

	// パレット数(6)を超える症状は色を循環して使う
	symptoms := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"}
	row := make([]float64, len(symptoms))
	for i := range row {
		row[i] = 5
	}

	data, err := chart.RenderStackedBars([]string{"Day 1"}, symptoms, [][]float64{row})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRenderStackedBarsEmptyMatrix(t *testing.T) {
	chart := NewChartService()

	_, err := chart.RenderStackedBars(nil, []string{"cough"}, nil)
	assert.Error(t, err)
}

func TestRenderStackedBarsLabelCountMismatch(t *testing.T) {
	chart := NewChartService()

	_, err := chart.RenderStackedBars(
		[]string{"Day 1"},
		[]string{"cough"},
		[][]float64{{10}, {20}},
	)
	assert.Error(t, err)
}

func TestRenderStackedBarsColumnCountMismatch(t *testing.T) {
	chart := NewChartService()

	_, err := chart.RenderStackedBars(
		[]string{"Day 1"},
		[]string{"cough", "itch"},
		[][]float64{{10}},
	)
	assert.Error(t, err)
}
