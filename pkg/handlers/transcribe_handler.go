package handlers

import (
	"io"
	"log"
	"net/http"

	"symptom-diary-api/pkg/models"
	"symptom-diary-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// maxUploadBytes アップロードファイルの上限 (10MB)
const maxUploadBytes = 10 << 20

// TranscribeHandler 音声・画像からテキストへの変換ハンドラ
type TranscribeHandler struct {
	openAIService *services.OpenAIService
}

// NewTranscribeHandler 新しいTranscribeHandlerを作成
func NewTranscribeHandler(openAIService *services.OpenAIService) *TranscribeHandler {
	return &TranscribeHandler{openAIService: openAIService}
}

// TranscribeAudio 音声ファイルを文字起こしして返します。
func (th *TranscribeHandler) TranscribeAudio(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "マルチパートフォームの解析に失敗しました。"})
		return
	}

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ファイルの取得に失敗しました。"})
		return
	}
	defer file.Close()

	text, err := th.openAIService.TranscribeAudio(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		log.Printf("音声の文字起こしに失敗: %v", err)
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TranscriptionResponse{Text: text})
}

// TranscribeImage 画像の皮膚状態の観察結果をテキストで返します。
func (th *TranscribeHandler) TranscribeImage(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "マルチパートフォームの解析に失敗しました。"})
		return
	}

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ファイルの取得に失敗しました。"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ファイルの読み取りに失敗しました。"})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	text, err := th.openAIService.DescribeImage(c.Request.Context(), imageData, mimeType)
	if err != nil {
		log.Printf("画像の説明生成に失敗: %v", err)
		respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TranscriptionResponse{Text: text})
}
