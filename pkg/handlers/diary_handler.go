package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"symptom-diary-api/pkg/models"
	"symptom-diary-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// minEpochMillis これ未満のタイムスタンプは秒指定の疑いがあるため拒否する。
// 10^12ミリ秒 = 2001-09-09 であり、それ以前の日誌は存在しない。
const minEpochMillis = int64(1_000_000_000_000)

// DiaryHandler 日誌レコードと要約パイプラインのハンドラ
type DiaryHandler struct {
	summaryService *services.SummaryService
	recordStore    services.RecordStore
}

// NewDiaryHandler 新しいDiaryHandlerを作成
func NewDiaryHandler(summaryService *services.SummaryService, recordStore services.RecordStore) *DiaryHandler {
	return &DiaryHandler{
		summaryService: summaryService,
		recordStore:    recordStore,
	}
}

// GenerateFollowUps レコード群からフォローアップ質問を生成
func (dh *DiaryHandler) GenerateFollowUps(c *gin.Context) {
	var req models.FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が正しくありません: " + err.Error()})
		return
	}
	if len(req.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "レコードが1件も指定されていません。"})
		return
	}

	questions, err := dh.summaryService.GenerateFollowUps(c.Request.Context(), req.Records)
	if err != nil {
		log.Printf("フォローアップ質問の生成に失敗: %v", err)
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"followup_questions": questions})
}

// SampleResponse 患者になりきった回答をシミュレーション（デモ・テスト用）
func (dh *DiaryHandler) SampleResponse(c *gin.Context) {
	var req models.SampleResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が正しくありません: " + err.Error()})
		return
	}

	answers, err := dh.summaryService.CollectAnswers(c.Request.Context(), req.Records, req.Questions)
	if err != nil {
		log.Printf("回答シミュレーションに失敗: %v", err)
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"followup_answers": answers})
}

// Summarize レコードと回答から構造化サマリーを生成
func (dh *DiaryHandler) Summarize(c *gin.Context) {
	var req models.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が正しくありません: " + err.Error()})
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, d := range req.Dates {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("日付の形式が正しくありません (YYYY-MM-DD): %s", d)})
			return
		}
		dates = append(dates, parsed)
	}

	summary, err := dh.summaryService.Summarize(c.Request.Context(), req.Records, dates, req.Answers)
	if err != nil {
		log.Printf("サマリー生成に失敗: %v", err)
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// SummarizePatient 患者単位の要約（保存済みレコードの直近4週間分）
func (dh *DiaryHandler) SummarizePatient(c *gin.Context) {
	patientUID := c.Param("patientUid")
	if patientUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "患者UIDが指定されていません。"})
		return
	}

	summary, err := dh.summaryService.SummarizeForPatient(c.Request.Context(), patientUID, models.DefaultSummaryWindow)
	if err != nil {
		log.Printf("患者 %s のサマリー生成に失敗: %v", patientUID, err)
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// UpdateData 日誌レコードをストアに追記します。
// タイムスタンプはエポックミリ秒必須で、秒らしき値は変換を推測せず400で拒否します。
// ミリ秒から秒への変換はこの境界で1回だけ行います。
func (dh *DiaryHandler) UpdateData(c *gin.Context) {
	var entries []models.UpdateDataEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が正しくありません: " + err.Error()})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "レコードが1件も指定されていません。"})
		return
	}

	records := make([]models.DiaryRecord, 0, len(entries))
	for i, entry := range entries {
		if entry.CreatedAt < minEpochMillis {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("エントリー%dのcreatedAtはエポックミリ秒で指定してください: %d", i, entry.CreatedAt),
			})
			return
		}
		records = append(records, models.DiaryRecord{
			ID:         uuid.New().String(),
			PatientUID: entry.PatientUID,
			UserText:   entry.UserText,
			CreatedAt:  entry.CreatedAt / 1000,
			FollowUps:  entry.FollowUps,
		})
	}

	added, err := dh.recordStore.Append(records)
	if err != nil {
		log.Printf("レコードの追記に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "レコードの保存に失敗しました。"})
		return
	}

	c.JSON(http.StatusOK, models.UpdateDataResponse{Added: added})
}
