// Package prompts はパイプライン各ステージの固定プロンプトテンプレートを保持します。
// テンプレートは純粋なデータであり、ここにロジックは持ちません。
package prompts

import (
	"regexp"
	"strings"

	"symptom-diary-api/pkg/models"
)

// テンプレートID
const (
	TemplateFollowUpQuestions = "followup_questions"
	TemplatePatientAnswer     = "patient_sample_answer"
	TemplateClinicalSummary   = "clinical_summary"
)

// ImageDescriptionPrompt 画像説明（皮膚状態の観察）用の固定プロンプト
const ImageDescriptionPrompt = "Analyze this image and describe the skin condition visible, focusing on redness. " +
	"Don't supply any potential diagnosis, just the notable features observed. Keep it short."

// followUpQuestionsTemplate ステージ1: フォローアップ質問の生成
const followUpQuestionsTemplate = `You are a medical assistant.

Use the following information:
- Patient record: {record}

Your tasks are:
If uncertainty is high, propose 2-3 brief follow-up questions that would clarify the case.
If uncertainty is low, return an empty list.

Format your answer as JSON:
{
  "followup_questions": ["<question 1>", "<question 2>", "<question 3>"]
}
`

// patientAnswerTemplate ステージ2: 患者になりきった回答のシミュレーション（デモ・テスト用）
const patientAnswerTemplate = `You are a patient.

Use the following information:
- Patient record: {record}
- Follow-up questions: {followup_questions}

Your tasks are:
Based on the patient record, provide a reasonable answer for each follow-up question.

Format your answer as JSON:
{
  "followup_answers": [{"question": "<question 1>", "answer": "<answer 1>"}]
}
`

// clinicalSummaryTemplate ステージ3: 構造化された症例サマリーの生成
const clinicalSummaryTemplate = `You are a medical assistant. Analyze the patient's records and follow-up answers carefully.

Input:
- Patient records: {records}
- Recorded dates: {dates}
- Follow-up answers: {followup_answers}

Your tasks:
1. Summarize the patient's case in concise terms:
   - Key symptoms in one or two words
   - Overall severity (Mild, Moderate, Severe; note if Worsening, Improving or Intermittent)
   - Relevant body parts or systems
2. Flag the importance of each symptom as HIGH / MEDIUM / LOW.
3. Provide a symptom intensity score (0-100) for each symptom with brief reasoning.
   - The score list must have exactly one entry per recorded date, in date order.
   - 0 means no immediate care needed, 100 means urgent care needed.
4. Suggest 2-3 possible conditions consistent with the symptoms.
5. Indicate whether the patient should see a doctor immediately (true / false).
6. Identify significant indicators: exact short phrases from the patient records that support your reasoning.

Format your answer as JSON:
{
    "summary": {
        "symptom": ["<symptom 1>", "<symptom 2>"],
        "severity": "(Severe/Moderate/Mild), (Worsening/Improving/Intermittent)",
        "relevant": "<body system>"
    },
    "importance": {
        "<symptom 1>": {
            "flag": "(HIGH / MEDIUM / LOW)",
            "score": [10, 20],
            "reasoning": "<reasoning>"
        }
    },
    "possible_conditions": [
        {"condition": "<name>", "reason": "<reason>"}
    ],
    "urgent": false,
    "indicator": ["<indicator 1>", "<indicator 2>"]
}
`

// placeholderPattern {variable_name} 形式のプレースホルダー
var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Registry はテンプレートIDからテンプレート本文への参照を保持します。
type Registry struct {
	templates map[string]string
}

// NewRegistry は組み込みテンプレートでレジストリを生成します。
func NewRegistry() *Registry {
	return &Registry{
		templates: map[string]string{
			TemplateFollowUpQuestions: followUpQuestionsTemplate,
			TemplatePatientAnswer:     patientAnswerTemplate,
			TemplateClinicalSummary:   clinicalSummaryTemplate,
		},
	}
}

// ApplyOverrides は設定ファイル由来のテンプレート上書きを適用します。
// 未知のIDは無視せずそのまま追加します（デプロイ側での実験を許容）。
func (r *Registry) ApplyOverrides(overrides map[string]string) {
	for id, text := range overrides {
		if strings.TrimSpace(text) == "" {
			continue
		}
		r.templates[id] = text
	}
}

// Render はテンプレートに変数を埋め込んで返します。
// テンプレートが存在しない、または埋め込み後に未解決の変数が残る場合は TemplateError を返します。
func (r *Registry) Render(templateID string, vars map[string]string) (string, error) {
	text, ok := r.templates[templateID]
	if !ok {
		return "", &models.TemplateError{Template: templateID}
	}

	for name, value := range vars {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}

	// JSONの出力例に含まれる波括弧とは形が異なるため、
	// {lower_snake_case} だけを未解決変数として検出できる
	if m := placeholderPattern.FindStringSubmatch(text); m != nil {
		return "", &models.TemplateError{Template: templateID, Variable: m[1]}
	}
	return text, nil
}
