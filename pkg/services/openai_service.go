package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"symptom-diary-api/pkg/models"
	"symptom-diary-api/pkg/openai"
	"symptom-diary-api/pkg/prompts"
)

// completionTimeout Gateway呼び出し1回あたりの上限。
// 元実装にはタイムアウトが存在しないが、本番運用では必須のため境界で課す。
const completionTimeout = 30 * time.Second

// CompletionClient OpenAI互換クライアントの narrow interface（テスト差し替え用）
type CompletionClient interface {
	ChatCompletion(ctx context.Context, messages []openai.ChatMessage, maxTokens int, temperature float32) (*openai.ChatCompletionResponse, error)
	TranscribeAudio(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// OpenAIService 言語モデルGatewayの実装。
// トランスポート・プロバイダ・タイムアウトの失敗をすべて GatewayError に正規化し、
// 呼び出し側には第一級の結果として返します（例外的に伝播させない）。
type OpenAIService struct {
	client CompletionClient
}

// NewOpenAIService 新しいOpenAI Gatewayサービスを作成
func NewOpenAIService(endpoint, apiKey, chatModel, transcribeModel string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(endpoint, apiKey, chatModel, transcribeModel),
	}
}

// NewOpenAIServiceWithClient クライアントを注入してサービスを作成（テスト用）
func NewOpenAIServiceWithClient(client CompletionClient) *OpenAIService {
	return &OpenAIService{client: client}
}

// Complete チャット補完を実行し、最初のchoiceの本文を返します。
// 失敗はすべて *models.GatewayError として返ります。
func (s *OpenAIService) Complete(ctx context.Context, messages []openai.ChatMessage, maxTokens int, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := s.client.ChatCompletion(ctx, messages, maxTokens, temperature)
	if err != nil {
		return "", &models.GatewayError{
			Cause:   err,
			Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
	}
	if len(resp.Choices) == 0 {
		return "", &models.GatewayError{Cause: fmt.Errorf("APIから有効な回答が得られませんでした")}
	}
	return resp.Choices[0].Message.Content, nil
}

// DescribeImage 皮膚状態の観察用プロンプトで画像を説明させます。
func (s *OpenAIService) DescribeImage(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	messages := []openai.ChatMessage{
		openai.ImageMessage(prompts.ImageDescriptionPrompt, imageData, mimeType),
	}
	return s.Complete(ctx, messages, 500, 0.7)
}

// TranscribeAudio 音声ファイルを文字起こしします。
func (s *OpenAIService) TranscribeAudio(ctx context.Context, filename string, audio io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	text, err := s.client.TranscribeAudio(ctx, filename, audio)
	if err != nil {
		return "", &models.GatewayError{
			Cause:   err,
			Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
	}
	return text, nil
}
