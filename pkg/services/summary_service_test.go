package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"symptom-diary-api/pkg/models"
	"symptom-diary-api/pkg/openai"
	"symptom-diary-api/pkg/prompts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway 呼び出しごとに用意したレスポンスを順番に返すテスト用ゲートウェイ
type fakeGateway struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeGateway) Complete(ctx context.Context, messages []openai.ChatMessage, maxTokens int, temperature float32) (string, error) {
	idx := f.calls
	f.calls++
	if len(messages) > 0 {
		if text, ok := messages[0].Content.(string); ok {
			f.prompts = append(f.prompts, text)
		}
	}
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", &models.GatewayError{Cause: errors.New("レスポンスが用意されていません")}
}

// fakeRecordStore メモリ上の固定レコードを返すテスト用ストア
type fakeRecordStore struct {
	records []models.DiaryRecord
}

func (f *fakeRecordStore) Append(records []models.DiaryRecord) (int, error) {
	f.records = append(f.records, records...)
	return len(records), nil
}

func (f *fakeRecordStore) Query(patientUID string, since time.Time) ([]models.DiaryRecord, error) {
	var result []models.DiaryRecord
	for _, r := range f.records {
		if r.PatientUID == patientUID && r.CreatedAt > since.Unix() {
			result = append(result, r)
		}
	}
	return result, nil
}

func newTestSummaryService(gateway Gateway, store RecordStore) *SummaryService {
	return NewSummaryService(gateway, NewResponseParser(), prompts.NewRegistry(), store, 500, 1500)
}

func TestGenerateFollowUps(t *testing.T) {
	gateway := &fakeGateway{responses: []string{`{"followup_questions": ["いつから咳が出ていますか？"]}`}}
	service := newTestSummaryService(gateway, &fakeRecordStore{})

	questions, err := service.GenerateFollowUps(context.Background(), []string{"咳が止まらない"})
	require.NoError(t, err)
	assert.Equal(t, []string{"いつから咳が出ていますか？"}, questions)

	// レコードがDay形式でプロンプトに埋め込まれる
	require.Len(t, gateway.prompts, 1)
	assert.Contains(t, gateway.prompts[0], "Day 1: 咳が止まらない")
}

func TestGenerateFollowUpsGatewayFailure(t *testing.T) {
	gateway := &fakeGateway{errs: []error{&models.GatewayError{Cause: errors.New("接続失敗")}}}
	service := newTestSummaryService(gateway, &fakeRecordStore{})

	_, err := service.GenerateFollowUps(context.Background(), []string{"咳"})

	var pipelineErr *models.PipelineError
	require.True(t, errors.As(err, &pipelineErr))
	assert.Equal(t, 1, pipelineErr.Stage)

	var gatewayErr *models.GatewayError
	assert.True(t, errors.As(err, &gatewayErr))
	// ステージ1で停止し、ステージ2・3のモデル呼び出しは行われない
	assert.Equal(t, 1, gateway.calls)
}

func TestCollectAnswers(t *testing.T) {
	gateway := &fakeGateway{responses: []string{`{"followup_answers": [{"question": "q1", "answer": "3日前からです"}]}`}}
	service := newTestSummaryService(gateway, &fakeRecordStore{})

	answers, err := service.CollectAnswers(context.Background(), []string{"咳"}, []string{"q1"})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "3日前からです", answers[0].Answer)
}

func TestCollectAnswersSchemaFailure(t *testing.T) {
	gateway := &fakeGateway{responses: []string{"not json at all"}}
	service := newTestSummaryService(gateway, &fakeRecordStore{})

	_, err := service.CollectAnswers(context.Background(), []string{"咳"}, []string{"q1"})

	var pipelineErr *models.PipelineError
	require.True(t, errors.As(err, &pipelineErr))
	assert.Equal(t, 2, pipelineErr.Stage)

	var schemaErr *models.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
}

func TestAnswersFromRecords(t *testing.T) {
	service := newTestSummaryService(&fakeGateway{}, &fakeRecordStore{})

	records := []models.DiaryRecord{
		{FollowUps: []models.FollowUp{
			{Question: "q1", UserResponse: "a1"},
			{Question: "q2", UserResponse: ""}, // 未回答はスキップ
		}},
		{FollowUps: []models.FollowUp{
			{Question: "q3", UserResponse: "a3"},
		}},
	}

	answers := service.AnswersFromRecords(records)
	require.Len(t, answers, 2)
	assert.Equal(t, "a1", answers[0].Answer)
	assert.Equal(t, "q3", answers[1].Question)
}

func TestSummarize(t *testing.T) {
	gateway := &fakeGateway{responses: []string{validSummaryJSON}}
	service := newTestSummaryService(gateway, &fakeRecordStore{})

	dates := []time.Time{
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC),
	}
	summary, err := service.Summarize(context.Background(), []string{"d1", "d2", "d3"}, dates, nil)
	require.NoError(t, err)

	// 日付とオンセット日数はモデル出力ではなくローカルで計算される
	assert.Equal(t, []string{"2025-09-01", "2025-09-02", "2025-09-03"}, summary.Dates)
	assert.Equal(t, 2, summary.OnsetDays)
	assert.Equal(t, []string{"cough", "itch"}, summary.Summary.Symptoms)
}

func TestSummarizeScoreLengthMismatch(t *testing.T) {
	// 3日分のスコアしか返ってこないのに5レコード渡すと検証で弾かれる
	gateway := &fakeGateway{responses: []string{validSummaryJSON}}
	service := newTestSummaryService(gateway, &fakeRecordStore{})

	dates := make([]time.Time, 5)
	for i := range dates {
		dates[i] = time.Date(2025, 9, i+1, 0, 0, 0, 0, time.UTC)
	}
	_, err := service.Summarize(context.Background(), []string{"d1", "d2", "d3", "d4", "d5"}, dates, nil)

	var pipelineErr *models.PipelineError
	require.True(t, errors.As(err, &pipelineErr))
	assert.Equal(t, 3, pipelineErr.Stage)
}

func TestSummarizeCancelledContext(t *testing.T) {
	gateway := &fakeGateway{responses: []string{validSummaryJSON}}
	service := newTestSummaryService(gateway, &fakeRecordStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Summarize(ctx, []string{"d1"}, []time.Time{time.Now()}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, gateway.calls)
}

func TestOnsetDays(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC)
	}

	assert.Equal(t, 0, OnsetDays(nil))
	assert.Equal(t, 0, OnsetDays([]time.Time{day(1)}))
	// 同一日付の複製は0日
	assert.Equal(t, 0, OnsetDays([]time.Time{day(5), day(5)}))
	// 順不同でも最古と最新の差
	assert.Equal(t, 4, OnsetDays([]time.Time{day(3), day(1), day(5)}))
}

func TestSummarizeForPatient(t *testing.T) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	store := &fakeRecordStore{records: []models.DiaryRecord{
		{PatientUID: "patient-1", UserText: "軽い咳", CreatedAt: now.Add(-4 * 24 * time.Hour).Unix(),
			FollowUps: []models.FollowUp{{Question: "q1", UserResponse: "はい"}}},
		{PatientUID: "patient-1", UserText: "咳が悪化", CreatedAt: now.Add(-3 * 24 * time.Hour).Unix()},
		{PatientUID: "patient-1", UserText: "眠れないほどの咳", CreatedAt: now.Unix()},
	}}
	gateway := &fakeGateway{responses: []string{
		`{"followup_questions": ["q1"]}`,
		validSummaryJSON,
	}}
	service := newTestSummaryService(gateway, store)

	summary, err := service.SummarizeForPatient(context.Background(), "patient-1", 0)
	require.NoError(t, err)

	// t0, t0+1日, t0+4日 のレコードからオンセット日数は4
	assert.Equal(t, 4, summary.OnsetDays)
	assert.Len(t, summary.Dates, 3)

	// ステージ1とステージ3の2回だけモデルを呼ぶ（回答は保存済みのものを使う）
	assert.Equal(t, 2, gateway.calls)
	// 保存済み回答がステージ3のプロンプトに渡る
	assert.Contains(t, gateway.prompts[1], "はい")

	highlights, err := NewAnalyticsService().ComputeHighlights(summary)
	require.NoError(t, err)
	assert.Equal(t, "cough", highlights[0].Symptom)
	assert.Equal(t, models.TrendWorsening, highlights[0].Trend)
}

func TestSummarizeForPatientNoRecords(t *testing.T) {
	service := newTestSummaryService(&fakeGateway{}, &fakeRecordStore{})

	_, err := service.SummarizeForPatient(context.Background(), "unknown-patient", 0)

	var notFoundErr *models.NotFoundError
	require.True(t, errors.As(err, &notFoundErr))
	assert.Equal(t, "unknown-patient", notFoundErr.PatientUID)
}

func TestSummarizeForPatientStageOneHalts(t *testing.T) {
	now := time.Now().Unix()
	store := &fakeRecordStore{records: []models.DiaryRecord{
		{PatientUID: "patient-1", UserText: "咳", CreatedAt: now},
	}}
	gateway := &fakeGateway{errs: []error{&models.GatewayError{Cause: errors.New("タイムアウト"), Timeout: true}}}
	service := newTestSummaryService(gateway, store)

	_, err := service.SummarizeForPatient(context.Background(), "patient-1", 0)

	var pipelineErr *models.PipelineError
	require.True(t, errors.As(err, &pipelineErr))
	assert.Equal(t, 1, pipelineErr.Stage)
	assert.Equal(t, 1, gateway.calls)
}

func TestJoinRecords(t *testing.T) {
	text := joinRecords([]string{"a", "b"})
	assert.True(t, strings.HasPrefix(text, "Day 1: a\n"))
	assert.Contains(t, text, "Day 2: b\n")
}
