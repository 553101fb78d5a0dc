package main

import (
	"log"
	"net/http"

	config "symptom-diary-api/configs"
	"symptom-diary-api/pkg/handlers"
	"symptom-diary-api/pkg/prompts"
	"symptom-diary-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()

	// プロンプトテンプレートの準備（YAMLによる上書きは任意）
	registry := prompts.NewRegistry()
	overrides, err := config.LoadPromptOverrides(cfg.PromptConfigPath)
	if err != nil {
		log.Fatalf("FATAL: プロンプト設定の読み込みに失敗: %v", err)
	}
	registry.ApplyOverrides(overrides)

	// Ginルーターの初期化
	r := gin.Default()

	// サービスの初期化
	monitoringService := services.NewMonitoringService()
	openAIService := services.NewOpenAIService(
		cfg.OpenAIEndpoint,
		cfg.OpenAIAPIKey,
		cfg.OpenAIModel,
		cfg.OpenAITranscribeModel,
	)
	recordStore, err := services.NewExcelRecordStore(cfg.RecordStorePath)
	if err != nil {
		log.Fatalf("FATAL: レコードストアの初期化に失敗: %v", err)
	}
	summaryService := services.NewSummaryService(
		openAIService,
		services.NewResponseParser(),
		registry,
		recordStore,
		cfg.FollowUpTokenLimit,
		cfg.SummaryTokenLimit,
	)
	analyticsService := services.NewAnalyticsService()
	chartService := services.NewChartService()

	// ハンドラーの初期化
	diaryHandler := handlers.NewDiaryHandler(summaryService, recordStore)
	analysisHandler := handlers.NewAnalysisHandler(summaryService, analyticsService, chartService)
	transcribeHandler := handlers.NewTranscribeHandler(openAIService)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	// 認証ミドルウェア
	authMiddleware := func(apiKey string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if apiKey == "" {
				c.Next()
				return
			}
			providedKey := c.GetHeader("X-API-KEY")
			if providedKey != apiKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Next()
		}
	}

	// ヘルスチェックエンドポイント
	r.GET("/health", handlers.HealthCheck)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		// 日誌・要約パイプラインAPI
		diary := v1.Group("/diary")
		{
			diary.POST("/followup", diaryHandler.GenerateFollowUps)
			diary.POST("/sample_response", diaryHandler.SampleResponse)
			diary.POST("/summarize", diaryHandler.Summarize)
			diary.POST("/summarize_patient/:patientUid", diaryHandler.SummarizePatient)
			diary.POST("/update_data", diaryHandler.UpdateData)
		}

		// 分析API
		analysis := v1.Group("/analysis")
		{
			analysis.GET("/highlights/:patientUid", analysisHandler.GetHighlights)
			analysis.POST("/plot_summary", analysisHandler.PlotSummary)
		}

		// 文字起こしAPI
		transcribe := v1.Group("/transcribe")
		{
			transcribe.POST("/audio", transcribeHandler.TranscribeAudio)
			transcribe.POST("/image", transcribeHandler.TranscribeImage)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	// サーバーの起動
	log.Printf("Symptom Diary-API を起動します (port: %s, env: %s)", cfg.Port, cfg.Environment)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
