package services

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
type MonitoringService struct {
	logs []LogEntry
	mu   sync.RWMutex
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs: make([]LogEntry, 0),
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// モニタリングAPI自体は記録しない
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}

		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		})
	}
}

// recentErrorLimit ダッシュボードに載せるサーバーエラーの上限
const recentErrorLimit = 10

// EndpointStats は1エンドポイントあたりの集計値です。
type EndpointStats struct {
	Count         int   `json:"count"`
	AvgResponseMS int64 `json:"avg_response_ms"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	Endpoints    map[string]EndpointStats `json:"endpoints"`
	StatusCodes  map[string]int           `json:"status_codes"`
	RecentErrors []LogEntry               `json:"recent_errors"`
}

// statusClass はHTTPステータスコードを集計用のクラス名に変換します。
func statusClass(code int) string {
	switch {
	case code >= 500:
		return "server_error"
	case code >= 400:
		return "client_error"
	case code >= 200 && code < 300:
		return "success"
	default:
		return "other"
	}
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().Add(-time.Duration(periodHours) * time.Hour)

	endpoints := make(map[string]EndpointStats)
	totals := make(map[string]time.Duration)
	statusCodes := make(map[string]int)
	recentErrors := make([]LogEntry, 0)

	for _, entry := range s.logs {
		if !entry.Timestamp.After(since) {
			continue
		}

		stats := endpoints[entry.Path]
		stats.Count++
		endpoints[entry.Path] = stats
		totals[entry.Path] += entry.ResponseTime

		statusCodes[statusClass(entry.StatusCode)]++

		if entry.StatusCode >= 500 {
			recentErrors = append(recentErrors, entry)
		}
	}

	for path, stats := range endpoints {
		stats.AvgResponseMS = totals[path].Milliseconds() / int64(stats.Count)
		endpoints[path] = stats
	}

	// 新しいものを先頭にして上限まで切り詰める
	if len(recentErrors) > recentErrorLimit {
		recentErrors = recentErrors[len(recentErrors)-recentErrorLimit:]
	}
	for i, j := 0, len(recentErrors)-1; i < j; i, j = i+1, j-1 {
		recentErrors[i], recentErrors[j] = recentErrors[j], recentErrors[i]
	}

	return DashboardData{
		Endpoints:    endpoints,
		StatusCodes:  statusCodes,
		RecentErrors: recentErrors,
	}
}
