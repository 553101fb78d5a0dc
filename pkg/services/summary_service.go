package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"symptom-diary-api/pkg/models"
	"symptom-diary-api/pkg/openai"
	"symptom-diary-api/pkg/prompts"
)

// pipelineTemperature 臨床用途では出力のばらつきを抑えたいため低めに固定
const pipelineTemperature = 0.3

// Gateway パイプラインが依存する言語モデル境界
type Gateway interface {
	Complete(ctx context.Context, messages []openai.ChatMessage, maxTokens int, temperature float32) (string, error)
}

// SummaryService 3ステージの要約パイプライン。
//
//	フォローアップ質問生成 -> 回答収集 -> 構造化サマリー
//
// ステージは厳密に逐次実行され、ステージnの検証済み出力がなければ
// ステージn+1は実行されません。失敗はステージ番号付きの PipelineError になります。
type SummaryService struct {
	gateway  Gateway
	parser   *ResponseParser
	registry *prompts.Registry
	store    RecordStore

	followUpTokenLimit int
	summaryTokenLimit  int
}

// NewSummaryService 新しいSummaryServiceを作成
func NewSummaryService(gateway Gateway, parser *ResponseParser, registry *prompts.Registry, store RecordStore, followUpTokenLimit, summaryTokenLimit int) *SummaryService {
	return &SummaryService{
		gateway:            gateway,
		parser:             parser,
		registry:           registry,
		store:              store,
		followUpTokenLimit: followUpTokenLimit,
		summaryTokenLimit:  summaryTokenLimit,
	}
}

// joinRecords 複数レコードをプロンプト埋め込み用の1テキストにまとめる
func joinRecords(records []string) string {
	var sb strings.Builder
	for i, record := range records {
		sb.WriteString(fmt.Sprintf("Day %d: %s\n", i+1, record))
	}
	return sb.String()
}

// GenerateFollowUps ステージ1: レコード群からフォローアップ質問を生成します。
func (s *SummaryService) GenerateFollowUps(ctx context.Context, records []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt, err := s.registry.Render(prompts.TemplateFollowUpQuestions, map[string]string{
		"record": joinRecords(records),
	})
	if err != nil {
		return nil, &models.PipelineError{Stage: 1, Err: err}
	}

	content, err := s.gateway.Complete(ctx, []openai.ChatMessage{openai.TextMessage("user", prompt)}, s.followUpTokenLimit, pipelineTemperature)
	if err != nil {
		return nil, &models.PipelineError{Stage: 1, Err: err}
	}

	questions, err := s.parser.ParseFollowUpQuestions(content)
	if err != nil {
		return nil, &models.PipelineError{Stage: 1, Err: err}
	}
	return questions, nil
}

// CollectAnswers ステージ2（シミュレーション版）: モデルに患者を演じさせて
// フォローアップ質問への妥当な回答を生成します。デモ・テスト用です。
func (s *SummaryService) CollectAnswers(ctx context.Context, records []string, questions []string) ([]models.FollowUpAnswer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, &models.PipelineError{Stage: 2, Err: err}
	}
	prompt, err := s.registry.Render(prompts.TemplatePatientAnswer, map[string]string{
		"record":             joinRecords(records),
		"followup_questions": string(questionsJSON),
	})
	if err != nil {
		return nil, &models.PipelineError{Stage: 2, Err: err}
	}

	content, err := s.gateway.Complete(ctx, []openai.ChatMessage{openai.TextMessage("user", prompt)}, s.followUpTokenLimit, pipelineTemperature)
	if err != nil {
		return nil, &models.PipelineError{Stage: 2, Err: err}
	}

	answers, err := s.parser.ParseFollowUpAnswers(content)
	if err != nil {
		return nil, &models.PipelineError{Stage: 2, Err: err}
	}
	return answers, nil
}

// AnswersFromRecords ステージ2（本番版）: 保存済みレコードのフォローアップ欄から
// 回答を取り出します。モデル呼び出しは行いません。
func (s *SummaryService) AnswersFromRecords(records []models.DiaryRecord) []models.FollowUpAnswer {
	var answers []models.FollowUpAnswer
	for _, record := range records {
		for _, fu := range record.FollowUps {
			if fu.UserResponse == "" {
				continue
			}
			answers = append(answers, models.FollowUpAnswer{
				Question: fu.Question,
				Answer:   fu.UserResponse,
			})
		}
	}
	return answers
}

// Summarize ステージ3: 構造化サマリーを生成し、日付とオンセット日数をローカルで付与します。
// 日付計算はモデルに任せません。
func (s *SummaryService) Summarize(ctx context.Context, records []string, dates []time.Time, answers []models.FollowUpAnswer) (*models.ClinicalSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	formattedDates := make([]string, len(dates))
	for i, d := range dates {
		formattedDates[i] = d.Format("2006-01-02")
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, &models.PipelineError{Stage: 3, Err: err}
	}

	prompt, err := s.registry.Render(prompts.TemplateClinicalSummary, map[string]string{
		"records":          joinRecords(records),
		"dates":            strings.Join(formattedDates, ", "),
		"followup_answers": string(answersJSON),
	})
	if err != nil {
		return nil, &models.PipelineError{Stage: 3, Err: err}
	}

	// サマリーは長くなるためステージ1・2より大きいトークン予算を使う
	content, err := s.gateway.Complete(ctx, []openai.ChatMessage{openai.TextMessage("user", prompt)}, s.summaryTokenLimit, pipelineTemperature)
	if err != nil {
		return nil, &models.PipelineError{Stage: 3, Err: err}
	}

	summary, err := s.parser.ParseClinicalSummary(content, len(records))
	if err != nil {
		return nil, &models.PipelineError{Stage: 3, Err: err}
	}

	summary.Dates = formattedDates
	summary.OnsetDays = OnsetDays(dates)
	return summary, nil
}

// OnsetDays 最古と最新の日付の差を日数で返します。日付が1つ以下なら0です。
func OnsetDays(dates []time.Time) int {
	if len(dates) < 2 {
		return 0
	}
	minDate, maxDate := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}
	return int(maxDate.Sub(minDate).Hours() / 24)
}

// SummarizeForPatient 患者単位のエントリーポイント。
// 集計期間内のレコードをストアから取得し、ステージ1 -> 保存済み回答 -> ステージ3 を実行します。
// レコードが1件もない場合は NotFoundError を返します。
func (s *SummaryService) SummarizeForPatient(ctx context.Context, patientUID string, window time.Duration) (*models.ClinicalSummary, error) {
	if window <= 0 {
		window = models.DefaultSummaryWindow
	}

	records, err := s.store.Query(patientUID, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("レコードの取得に失敗: %w", err)
	}
	if len(records) == 0 {
		return nil, &models.NotFoundError{PatientUID: patientUID}
	}

	texts := make([]string, len(records))
	dates := make([]time.Time, len(records))
	for i, record := range records {
		texts[i] = record.UserText
		dates[i] = time.Unix(record.CreatedAt, 0).UTC()
	}

	if _, err := s.GenerateFollowUps(ctx, texts); err != nil {
		return nil, err
	}

	answers := s.AnswersFromRecords(records)
	return s.Summarize(ctx, texts, dates, answers)
}
