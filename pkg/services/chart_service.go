package services

import (
	"bytes"
	"fmt"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// barPalette 症状カテゴリごとの色（積み上げ順に循環使用）
var barPalette = []string{
	"#a6cee3", // light blue
	"#fdbf6f", // soft orange
	"#b2df8a", // light green
	"#fb9a99", // soft red/pink
	"#cab2d6", // light purple
	"#ffff99", // pale yellow
}

const (
	chartWidth   = 1000
	chartHeight  = 300
	marginLeft   = 60.0
	marginRight  = 160.0
	marginTop    = 30.0
	marginBottom = 45.0
)

// ChartService 正規化済み強度マトリクスから積み上げ棒グラフのPNGを描画します。
// x軸は日付ラベル、y軸は強度（0-100）です。
type ChartService struct{}

// NewChartService 新しいChartServiceを作成
func NewChartService() *ChartService {
	return &ChartService{}
}

// RenderStackedBars 日別×症状別のマトリクスをPNGにレンダリングします。
// matrix[day][i] は symptoms[i] のその日の正規化済みスコアです。
func (c *ChartService) RenderStackedBars(dayLabels []string, symptoms []string, matrix [][]float64) ([]byte, error) {
	if len(matrix) == 0 || len(symptoms) == 0 {
		return nil, fmt.Errorf("描画対象のデータがありません")
	}
	if len(matrix) != len(dayLabels) {
		return nil, fmt.Errorf("日付ラベル数 %d とマトリクス行数 %d が一致しません", len(dayLabels), len(matrix))
	}
	for day, row := range matrix {
		if len(row) != len(symptoms) {
			return nil, fmt.Errorf("day %d の列数 %d が症状数 %d と一致しません", day+1, len(row), len(symptoms))
		}
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	plotWidth := float64(chartWidth) - marginLeft - marginRight
	plotHeight := float64(chartHeight) - marginTop - marginBottom
	originX := marginLeft
	originY := float64(chartHeight) - marginBottom

	// y軸の目盛りとグリッド（0-100%）
	dc.SetRGB(0.85, 0.85, 0.85)
	for _, pct := range []float64{0, 25, 50, 75, 100} {
		y := originY - plotHeight*pct/100
		dc.DrawLine(originX, y, originX+plotWidth, y)
		dc.Stroke()
	}
	dc.SetRGB(0.2, 0.2, 0.2)
	for _, pct := range []float64{0, 25, 50, 75, 100} {
		y := originY - plotHeight*pct/100
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", pct), originX-8, y, 1, 0.5)
	}

	// 積み上げ棒: 各日の症状スコアを下から順に重ねる
	barSlot := plotWidth / float64(len(matrix))
	barWidth := barSlot * 0.6
	for day, row := range matrix {
		x := originX + float64(day)*barSlot + (barSlot-barWidth)/2
		bottom := originY
		for i, value := range row {
			if value <= 0 {
				continue
			}
			height := plotHeight * value / 100
			dc.SetHexColor(barPalette[i%len(barPalette)])
			dc.DrawRectangle(x, bottom-height, barWidth, height)
			dc.Fill()
			bottom -= height
		}

		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(dayLabels[day], x+barWidth/2, originY+14, 0.5, 0.5)
	}

	// 軸線
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.DrawLine(originX, originY, originX+plotWidth, originY)
	dc.DrawLine(originX, originY, originX, marginTop)
	dc.Stroke()

	// 凡例（右側に色見本と症状名）
	legendX := originX + plotWidth + 20
	legendY := marginTop + 10
	for i, symptom := range symptoms {
		dc.SetHexColor(barPalette[i%len(barPalette)])
		dc.DrawRectangle(legendX, legendY-8, 12, 12)
		dc.Fill()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(symptom, legendX+18, legendY-2, 0, 0.5)
		legendY += 18
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("PNGのエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}
