package handlers

import (
	"errors"
	"net/http"

	"symptom-diary-api/pkg/models"

	"github.com/gin-gonic/gin"
)

// respondPipelineError パイプライン系エラーをHTTPステータスに対応付けて返します。
//   - NotFoundError   -> 404（患者未知・期間内レコードなし）
//   - GatewayError起因 -> 502（上流のLLMプロバイダの失敗）
//   - SchemaError起因  -> 422（モデル出力が検証を通らなかった）
//   - それ以外        -> 500
func respondPipelineError(c *gin.Context, err error) {
	var notFound *models.NotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		return
	}

	var gatewayErr *models.GatewayError
	if errors.As(err, &gatewayErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	var schemaErr *models.SchemaError
	if errors.As(err, &schemaErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
			"kind":  string(schemaErr.Kind),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// HealthCheck ヘルスチェックエンドポイント
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Symptom Diary-API",
	})
}
