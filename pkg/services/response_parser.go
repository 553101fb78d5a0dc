package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"symptom-diary-api/pkg/models"
)

// ResponseParser LLM出力のスキーマ検証を行います。
// モデルの出力は信頼できないテキストであり、ここを通さずに構造化データとして
// 扱ってはいけません。JSONとして壊れている場合は MalformedPayload、
// JSONとしては正しいが形が合わない場合は ShapeMismatch を返し、
// 呼び出し側が両者を区別できるようにします。
type ResponseParser struct{}

// NewResponseParser 新しいResponseParserを作成
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// stripCodeFences モデルがJSONをMarkdownのコードブロックで包んで返すことがあるため剥がす
func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

// decodeTopLevel トップレベルのJSONオブジェクトを緩くデコードします。
// 未知のキーは許容し、JSONでないテキストは MalformedPayload になります。
func decodeTopLevel(raw string) (map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &top); err != nil {
		return nil, &models.SchemaError{Kind: models.MalformedPayload, Reason: err.Error()}
	}
	return top, nil
}

// ParseFollowUpQuestions ステージ1の出力（フォローアップ質問リスト）を検証します。
// 空リストは有効です（不確実性が低いケース）。
func (p *ResponseParser) ParseFollowUpQuestions(raw string) ([]string, error) {
	top, err := decodeTopLevel(raw)
	if err != nil {
		return nil, err
	}

	data, ok := top["followup_questions"]
	if !ok {
		return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "followup_questions", Reason: "必須キーがありません"}
	}
	var questions []string
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "followup_questions", Reason: "文字列の配列ではありません"}
	}

	// 質問は最大3件。超過分はモデルの指示違反なので切り捨てる
	if len(questions) > 3 {
		questions = questions[:3]
	}
	return questions, nil
}

// ParseFollowUpAnswers ステージ2の出力（質問と回答のペア）を検証します。
func (p *ResponseParser) ParseFollowUpAnswers(raw string) ([]models.FollowUpAnswer, error) {
	top, err := decodeTopLevel(raw)
	if err != nil {
		return nil, err
	}

	data, ok := top["followup_answers"]
	if !ok {
		return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "followup_answers", Reason: "必須キーがありません"}
	}
	var answers []models.FollowUpAnswer
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "followup_answers", Reason: "{question, answer} の配列ではありません"}
	}
	for i, a := range answers {
		if a.Question == "" {
			return nil, &models.SchemaError{
				Kind:   models.ShapeMismatch,
				Field:  fmt.Sprintf("followup_answers[%d].question", i),
				Reason: "質問が空です",
			}
		}
	}
	return answers, nil
}

// ParseClinicalSummary ステージ3の出力（構造化サマリー）を検証します。
// expectedDays が正の場合、各症状のスコア列の長さが入力日数と一致することを要求します。
// 派生フィールド（dates, onset_days）はここでは扱いません。
func (p *ResponseParser) ParseClinicalSummary(raw string, expectedDays int) (*models.ClinicalSummary, error) {
	top, err := decodeTopLevel(raw)
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"summary", "importance", "possible_conditions", "urgent", "indicator"} {
		if _, ok := top[key]; !ok {
			return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: key, Reason: "必須キーがありません"}
		}
	}

	summary := &models.ClinicalSummary{}

	if err := json.Unmarshal(top["summary"], &summary.Summary); err != nil {
		return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "summary", Reason: err.Error()}
	}
	if len(summary.Summary.Symptoms) == 0 {
		return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "summary.symptom", Reason: "症状が1つもありません"}
	}

	importance, order, err := parseImportance(top["importance"], expectedDays)
	if err != nil {
		return nil, err
	}
	summary.Importance = importance
	summary.SymptomOrder = order

	if err := json.Unmarshal(top["possible_conditions"], &summary.PossibleConditions); err != nil {
		return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "possible_conditions", Reason: err.Error()}
	}

	urgent, err := parseUrgent(top["urgent"])
	if err != nil {
		return nil, err
	}
	summary.Urgent = urgent

	if err := json.Unmarshal(top["indicator"], &summary.Indicators); err != nil {
		return nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "indicator", Reason: err.Error()}
	}

	return summary, nil
}

// parseImportance importanceオブジェクトを検証します。
// GoのmapはJSONのキー順を保持しないため、タイブレークに使う出現順を
// トークン単位のデコードで別途抽出します。
func parseImportance(data json.RawMessage, expectedDays int) (map[string]models.SymptomImportance, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "importance", Reason: "オブジェクトではありません"}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "importance", Reason: "オブジェクトではありません"}
	}

	importance := make(map[string]models.SymptomImportance)
	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "importance", Reason: err.Error()}
		}
		symptom := keyTok.(string)

		var entry models.SymptomImportance
		if err := dec.Decode(&entry); err != nil {
			return nil, nil, &models.SchemaError{
				Kind:   models.ShapeMismatch,
				Field:  "importance." + symptom,
				Reason: err.Error(),
			}
		}
		if entry.Flag != models.FlagHigh && entry.Flag != models.FlagMedium && entry.Flag != models.FlagLow {
			return nil, nil, &models.SchemaError{
				Kind:   models.ShapeMismatch,
				Field:  "importance." + symptom + ".flag",
				Reason: fmt.Sprintf("HIGH/MEDIUM/LOW のいずれでもありません: %q", entry.Flag),
			}
		}
		for _, score := range entry.Score {
			if score < 0 || score > 100 {
				return nil, nil, &models.SchemaError{
					Kind:   models.ShapeMismatch,
					Field:  "importance." + symptom + ".score",
					Reason: fmt.Sprintf("スコアが0-100の範囲外です: %v", score),
				}
			}
		}
		if expectedDays > 0 && len(entry.Score) != expectedDays {
			return nil, nil, &models.SchemaError{
				Kind:   models.ShapeMismatch,
				Field:  "importance." + symptom + ".score",
				Reason: fmt.Sprintf("スコア列の長さ %d が入力日数 %d と一致しません", len(entry.Score), expectedDays),
			}
		}

		importance[symptom] = entry
		order = append(order, symptom)
	}

	if len(importance) == 0 {
		return nil, nil, &models.SchemaError{Kind: models.ShapeMismatch, Field: "importance", Reason: "症状が1つもありません"}
	}
	return importance, order, nil
}

// parseUrgent urgentフィールドを検証します。
// プロンプトは true/false を要求するが、モデルが "Yes"/"No" で返すことがあるため両方を受ける。
func parseUrgent(data json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "true":
			return true, nil
		case "no", "false":
			return false, nil
		}
	}
	return false, &models.SchemaError{Kind: models.ShapeMismatch, Field: "urgent", Reason: "真偽値として解釈できません"}
}
