package models

import "time"

// DiaryRecord 患者の日誌レコード1件を表します。
// タイムスタンプは秒単位で保持し、(PatientUID, CreatedAt) の組が一意キーになります。
type DiaryRecord struct {
	ID         string     `json:"id"`
	PatientUID string     `json:"patient_uid"`
	UserText   string     `json:"user_text"`
	CreatedAt  int64      `json:"created_at"` // Unixエポック秒
	FollowUps  []FollowUp `json:"follow_ups,omitempty"`
}

// FollowUp LLMが生成したフォローアップ質問と、患者の任意回答のペア
type FollowUp struct {
	Question     string `json:"question"`
	UserResponse string `json:"user_response,omitempty"`
}

// FollowUpAnswer フォローアップ質問への回答（ステージ2の出力）
type FollowUpAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// 重要度フラグ
const (
	FlagHigh   = "HIGH"
	FlagMedium = "MEDIUM"
	FlagLow    = "LOW"
)

// SymptomImportance 症状ごとの重要度評価
// Score は入力レコードの日数と同じ長さの強度スコア列（0-100）です。
type SymptomImportance struct {
	Flag      string    `json:"flag"`
	Score     []float64 `json:"score"`
	Reasoning string    `json:"reasoning"`
}

// CaseSummary 症例の要約部分（症状・重症度・関連部位）
type CaseSummary struct {
	Symptoms []string `json:"symptom"`
	Severity string   `json:"severity"` // 例: "Moderate, Worsening"
	Relevant string   `json:"relevant"` // 関連する身体システム
}

// PossibleCondition 可能性のある疾患とその根拠
type PossibleCondition struct {
	Condition string `json:"condition"`
	Reason    string `json:"reason"`
}

// ClinicalSummary パイプライン最終ステージの構造化出力。
// Dates と OnsetDays はLLMの出力ではなく、ローカルで計算して付与します。
type ClinicalSummary struct {
	Summary            CaseSummary                  `json:"summary"`
	Importance         map[string]SymptomImportance `json:"importance"`
	SymptomOrder       []string                     `json:"symptom_order,omitempty"` // importanceのJSON出現順（タイブレークに使用）
	PossibleConditions []PossibleCondition          `json:"possible_conditions"`
	Urgent             bool                         `json:"urgent"`
	Indicators         []string                     `json:"indicator"`
	Dates              []string                     `json:"dates,omitempty"`      // ISO 8601 (YYYY-MM-DD)
	OnsetDays          int                          `json:"onset_days,omitempty"` // 最古と最新のレコードの日数差
}

// トレンドラベル
const (
	TrendWorsening = "Worsening"
	TrendImproving = "Improving"
	TrendSteady    = "steady"
)

// Highlight 累積スコア上位の症状と直近の変化傾向（派生値、永続化しない）
type Highlight struct {
	Symptom string  `json:"symptom"`
	Trend   string  `json:"trend"`
	Rate    float64 `json:"rate"` // 直近2日間の変化率
}

// FollowUpRequest /diary/followup のリクエスト
type FollowUpRequest struct {
	Records []string `json:"records" binding:"required"`
}

// SampleResponseRequest /diary/sample_response のリクエスト
type SampleResponseRequest struct {
	Records   []string `json:"records" binding:"required"`
	Questions []string `json:"questions" binding:"required"`
}

// SummarizeRequest /diary/summarize のリクエスト
type SummarizeRequest struct {
	Records []string         `json:"records" binding:"required"`
	Dates   []string         `json:"dates,omitempty"` // ISO 8601 (YYYY-MM-DD)
	Answers []FollowUpAnswer `json:"answers,omitempty"`
}

// UpdateDataEntry /diary/update_data の1エントリー
// CreatedAt はエポックミリ秒で必須（秒らしき曖昧な値は拒否する）。
type UpdateDataEntry struct {
	PatientUID string     `json:"patientUid" binding:"required"`
	UserText   string     `json:"userText" binding:"required"`
	CreatedAt  int64      `json:"createdAt" binding:"required"`
	FollowUps  []FollowUp `json:"followUps,omitempty"`
}

// UpdateDataResponse /diary/update_data のレスポンス
type UpdateDataResponse struct {
	Added int `json:"added"`
}

// TranscriptionResponse 音声・画像の文字起こしレスポンス
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// DefaultSummaryWindow summarize_patient が参照する既定の集計期間（4週間）
const DefaultSummaryWindow = 28 * 24 * time.Hour
