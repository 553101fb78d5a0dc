package services

import (
	"fmt"
	"sort"

	"symptom-diary-api/pkg/models"
)

// AnalyticsService サマリーからの派生分析（ハイライト・強度マトリクス）。
// 入力のサマリーが不正でも AnalyticsError を返すだけで、プロセスは落としません。
type AnalyticsService struct{}

// NewAnalyticsService 新しいAnalyticsServiceを作成
func NewAnalyticsService() *AnalyticsService {
	return &AnalyticsService{}
}

// symptomOrder タイブレークに使う症状の順序を決めます。
// パーサーが抽出したJSON出現順を優先し、手組みのサマリー（テストや
// /plot_summary への直接入力）には summary.symptom とソート順で補完します。
func symptomOrder(summary *models.ClinicalSummary) []string {
	if len(summary.SymptomOrder) > 0 {
		return summary.SymptomOrder
	}

	var order []string
	seen := make(map[string]bool)
	for _, symptom := range summary.Summary.Symptoms {
		if _, ok := summary.Importance[symptom]; ok && !seen[symptom] {
			order = append(order, symptom)
			seen[symptom] = true
		}
	}
	var rest []string
	for symptom := range summary.Importance {
		if !seen[symptom] {
			rest = append(rest, symptom)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// OrderedSymptoms マトリクスの列順と同じ症状リストを返します。
// 凡例の表示順をマトリクスと揃えるために使います。
func (a *AnalyticsService) OrderedSymptoms(summary *models.ClinicalSummary) []string {
	if summary == nil || len(summary.Importance) == 0 {
		return nil
	}
	return symptomOrder(summary)
}

// ComputeHighlights 累積スコア上位2症状のハイライトを返します。
// 変化率は直近2日間のみで計算します: (latest - previous) / previous。
// previousが0の場合のゼロ除算は次のポリシーで回避します:
//   - previous == 0 かつ latest == 0 -> rate = 0, steady
//   - previous == 0 かつ latest > 0  -> Worsening, rateは+1.0（フルスケールの上昇）に丸める
//
// スコアが1点しかない系列は比較対象がないため steady です。
func (a *AnalyticsService) ComputeHighlights(summary *models.ClinicalSummary) ([]models.Highlight, error) {
	if summary == nil || len(summary.Importance) == 0 {
		return nil, &models.AnalyticsError{Reason: "importanceが空です"}
	}

	order := symptomOrder(summary)

	type symptomTotal struct {
		symptom string
		total   float64
		index   int // 出現順（同点の場合のタイブレーク）
	}
	totals := make([]symptomTotal, 0, len(order))
	for i, symptom := range order {
		entry := summary.Importance[symptom]
		var sum float64
		for _, score := range entry.Score {
			sum += score
		}
		totals = append(totals, symptomTotal{symptom: symptom, total: sum, index: i})
	}

	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].total != totals[j].total {
			return totals[i].total > totals[j].total
		}
		return totals[i].index < totals[j].index
	})

	limit := 2
	if len(totals) < limit {
		limit = len(totals)
	}

	highlights := make([]models.Highlight, 0, limit)
	for _, st := range totals[:limit] {
		score := summary.Importance[st.symptom].Score
		rate, trend := rateOfChange(score)
		highlights = append(highlights, models.Highlight{
			Symptom: st.symptom,
			Trend:   trend,
			Rate:    rate,
		})
	}
	return highlights, nil
}

// rateOfChange 直近2日間の変化率とトレンドラベルを計算します。
func rateOfChange(score []float64) (float64, string) {
	if len(score) < 2 {
		return 0, models.TrendSteady
	}
	latest := score[len(score)-1]
	previous := score[len(score)-2]

	if previous == 0 {
		if latest == 0 {
			return 0, models.TrendSteady
		}
		return 1.0, models.TrendWorsening
	}

	rate := (latest - previous) / previous
	switch {
	case rate > 0:
		return rate, models.TrendWorsening
	case rate < 0:
		return rate, models.TrendImproving
	default:
		return 0, models.TrendSteady
	}
}

// BuildIntensityMatrix 症状ごとのスコア系列を日別×症状別のグリッドに転置し、
// 各値を症状数で割って正規化します。積み上げ棒グラフで全症状の合計が
// 1日あたりの総合強度（最大100）に収まるようにするための規約です。
func (a *AnalyticsService) BuildIntensityMatrix(summary *models.ClinicalSummary) ([][]float64, error) {
	if summary == nil || len(summary.Importance) == 0 {
		return nil, &models.AnalyticsError{Reason: "importanceが空です"}
	}

	order := symptomOrder(summary)
	numDays := len(summary.Importance[order[0]].Score)
	if numDays == 0 {
		return nil, &models.AnalyticsError{Reason: "スコア系列が空です"}
	}
	for _, symptom := range order {
		if len(summary.Importance[symptom].Score) != numDays {
			return nil, &models.AnalyticsError{
				Reason: fmt.Sprintf("症状 %s のスコア系列の長さが他と一致しません", symptom),
			}
		}
	}

	numSymptoms := float64(len(order))
	matrix := make([][]float64, numDays)
	for day := 0; day < numDays; day++ {
		row := make([]float64, len(order))
		for i, symptom := range order {
			row[i] = summary.Importance[symptom].Score[day] / numSymptoms
		}
		matrix[day] = row
	}
	return matrix, nil
}
