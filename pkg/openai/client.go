package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client はOpenAI互換REST APIへのリクエストを管理します。
// endpointには本家OpenAIのエンドポイント、または互換プロキシのURLを設定します。
type Client struct {
	endpoint        string
	apiKey          string
	chatModel       string
	transcribeModel string
	httpClient      *http.Client
}

// NewClient は新しいOpenAI互換クライアントを作成します。
func NewClient(endpoint, apiKey, chatModel, transcribeModel string) *Client {
	return &Client{
		endpoint:        strings.TrimSuffix(endpoint, "/"),
		apiKey:          apiKey,
		chatModel:       chatModel,
		transcribeModel: transcribeModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// --- データ構造定義 ---

// ImageURL 画像コンテンツの参照（data URL形式のインライン画像を想定）
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart マルチモーダルメッセージの1要素（テキストまたは画像）
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ChatMessage チャットメッセージ。Contentは文字列または []ContentPart を取ります。
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// TextMessage テキストのみのメッセージを作成
func TextMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: text}
}

// ImageMessage テキストとインライン画像を持つユーザーメッセージを作成
func ImageMessage(text string, imageData []byte, mimeType string) ChatMessage {
	encoded := base64.StdEncoding.EncodeToString(imageData)
	return ChatMessage{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", mimeType, encoded),
			}},
		},
	}
}

// ChatCompletionRequest チャット補完リクエスト
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

// ChatCompletionResponse チャット補完レスポンス
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// TranscriptionResponse 音声文字起こしレスポンス
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// --- メソッド定義 ---

// ChatCompletion チャット補完を実行
func (c *Client) ChatCompletion(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float32) (*ChatCompletionResponse, error) {
	url := c.endpoint + "/v1/chat/completions"

	request := ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	var response ChatCompletionResponse
	if err := c.doRequest(ctx, url, request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// TranscribeAudio 音声ファイルをWhisper互換エンドポイントで文字起こし
func (c *Client) TranscribeAudio(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key が設定されていません")
	}
	url := c.endpoint + "/v1/audio/transcriptions"

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("マルチパートの作成に失敗: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("音声データの書き込みに失敗: %w", err)
	}
	if err := writer.WriteField("model", c.transcribeModel); err != nil {
		return "", fmt.Errorf("モデル名の書き込みに失敗: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("マルチパートのクローズに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの実行に失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp.StatusCode, respBody)
	}

	var transcription TranscriptionResponse
	if err := json.Unmarshal(respBody, &transcription); err != nil {
		return "", fmt.Errorf("レスポンスのパースに失敗: %w", err)
	}
	return transcription.Text, nil
}

// doRequest はHTTPリクエストの実行と基本的なレスポンス処理を行う共通メソッドです。
func (c *Client) doRequest(ctx context.Context, url string, requestData interface{}, responseData interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("API key が設定されていません")
	}

	requestBody, err := json.Marshal(requestData)
	if err != nil {
		return fmt.Errorf("リクエストのJSON化に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの実行に失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, responseData); err != nil {
		return fmt.Errorf("レスポンスのパースに失敗: %w", err)
	}
	return nil
}

// decodeAPIError エラーレスポンスを可能な限り構造化して返します。
func decodeAPIError(status int, body []byte) error {
	var apiErr ErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("APIエラー (status %d, type %s): %s", status, apiErr.Error.Type, apiErr.Error.Message)
	}
	return fmt.Errorf("APIエラー (status %d): %s", status, string(body))
}
