package models

import "fmt"

// GatewayError LLMプロバイダ呼び出しの失敗（トランスポート・プロバイダ・タイムアウト）。
// Gateway境界の外には常にこの型で正規化して返し、例外的に伝播させません。
type GatewayError struct {
	Cause   error
	Timeout bool
}

func (e *GatewayError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("LLM呼び出しがタイムアウトしました: %v", e.Cause)
	}
	return fmt.Sprintf("LLM呼び出しに失敗しました: %v", e.Cause)
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// SchemaErrorKind スキーマ検証エラーの種別
type SchemaErrorKind string

const (
	// MalformedPayload JSONとして解釈できない出力（モデルがゴミを返した）
	MalformedPayload SchemaErrorKind = "malformed_payload"
	// ShapeMismatch JSONとしては正しいが期待する形と一致しない出力
	ShapeMismatch SchemaErrorKind = "shape_mismatch"
)

// SchemaError LLM出力のスキーマ検証エラー。
// Field には問題のあったキー名を入れます（MalformedPayloadの場合は空）。
type SchemaError struct {
	Kind   SchemaErrorKind
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Kind == MalformedPayload {
		return fmt.Sprintf("LLM出力がJSONとして解釈できません: %s", e.Reason)
	}
	return fmt.Sprintf("LLM出力のスキーマが不正です（フィールド: %s）: %s", e.Field, e.Reason)
}

// PipelineError パイプラインのステージ失敗。Stage は 1〜3。
// あるステージで失敗した場合、以降のステージは実行されません。
type PipelineError struct {
	Stage int
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("パイプラインのステージ%dで失敗しました: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NotFoundError 患者が未知、または集計期間内にレコードが存在しない
type NotFoundError struct {
	PatientUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("患者 %s のレコードが期間内に見つかりません", e.PatientUID)
}

// TemplateError プロンプトテンプレートの描画エラー。
// 実行時に回復する類のエラーではなく、プログラミングエラーを示します。
type TemplateError struct {
	Template string
	Variable string
}

func (e *TemplateError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("テンプレート %s が見つかりません", e.Template)
	}
	return fmt.Sprintf("テンプレート %s の変数 %s が未解決です", e.Template, e.Variable)
}

// AnalyticsError 分析処理のエラー（importance欠落など不正なサマリー入力）。
// サービングプロセスを落とさず、呼び出し元に報告します。
type AnalyticsError struct {
	Reason string
}

func (e *AnalyticsError) Error() string {
	return fmt.Sprintf("分析処理に失敗しました: %s", e.Reason)
}
