package handlers

import (
	"fmt"
	"log"
	"net/http"

	"symptom-diary-api/pkg/models"
	"symptom-diary-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler サマリー派生分析（ハイライト・可視化）のハンドラ
type AnalysisHandler struct {
	summaryService   *services.SummaryService
	analyticsService *services.AnalyticsService
	chartService     *services.ChartService
}

// NewAnalysisHandler 新しいAnalysisHandlerを作成
func NewAnalysisHandler(summaryService *services.SummaryService, analyticsService *services.AnalyticsService, chartService *services.ChartService) *AnalysisHandler {
	return &AnalysisHandler{
		summaryService:   summaryService,
		analyticsService: analyticsService,
		chartService:     chartService,
	}
}

// GetHighlights 患者の直近サマリーから累積スコア上位2症状のハイライトを返します。
func (ah *AnalysisHandler) GetHighlights(c *gin.Context) {
	patientUID := c.Param("patientUid")
	if patientUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "患者UIDが指定されていません。"})
		return
	}

	summary, err := ah.summaryService.SummarizeForPatient(c.Request.Context(), patientUID, models.DefaultSummaryWindow)
	if err != nil {
		log.Printf("患者 %s のサマリー生成に失敗: %v", patientUID, err)
		respondPipelineError(c, err)
		return
	}

	highlights, err := ah.analyticsService.ComputeHighlights(summary)
	if err != nil {
		log.Printf("ハイライト計算に失敗: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"highlights": highlights})
}

// PlotSummary サマリーの強度マトリクスを積み上げ棒グラフのPNGとして返します。
func (ah *AnalysisHandler) PlotSummary(c *gin.Context) {
	var summary models.ClinicalSummary
	if err := c.ShouldBindJSON(&summary); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が正しくありません: " + err.Error()})
		return
	}

	matrix, err := ah.analyticsService.BuildIntensityMatrix(&summary)
	if err != nil {
		log.Printf("強度マトリクスの構築に失敗: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	// x軸ラベル: サマリーに日付があればそれを、なければ Day N を使う
	labels := summary.Dates
	if len(labels) != len(matrix) {
		labels = make([]string, len(matrix))
		for i := range labels {
			labels[i] = fmt.Sprintf("Day %d", i+1)
		}
	}

	png, err := ah.chartService.RenderStackedBars(labels, ah.analyticsService.OrderedSymptoms(&summary), matrix)
	if err != nil {
		log.Printf("グラフの描画に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "グラフの描画に失敗しました。"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
