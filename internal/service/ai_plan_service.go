package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrAIAPIKeyMissing 在未配置聊天补全 API Key 时返回
var ErrAIAPIKeyMissing = errors.New("ai api key not configured")

const planSystemPrompt = `你是一名生产力助手。
你只能以 JSON 数组的形式回答一份高效的一日日程，
禁止在 JSON 之外添加任何解释。
数组的每一项包含两个属性：
- "time"：24 小时制时间（例如 "08:00"）
- "activity"：简短的高效活动描述`

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// PlanItem 是 AI 生成的日程中的一项
type PlanItem struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
}

// AIPlanService 把用户的目标描述转发到聊天补全接口，
// 生成一份 JSON 结构的一日日程。引擎对该功能零依赖，
// 它只是请求层的一个外围代理。

type AIPlanService struct {
	http    httpDoer
	apiKey  string
	baseURL string
	model   string
}

// NewAIPlanService 构造 AIPlanService
func NewAIPlanService(apiKey, baseURL, model string) *AIPlanService {
	return &AIPlanService{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:   strings.TrimSpace(model),
	}
}

// SetHTTPClient 替换底层 HTTP 客户端，测试用
func (s *AIPlanService) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.http = &http.Client{Timeout: 60 * time.Second}
		return
	}
	s.http = client
}

// GeneratePlan 请求聊天补全接口并解析出日程数组
func (s *AIPlanService) GeneratePlan(ctx context.Context, prompt string) ([]PlanItem, error) {
	if s.apiKey == "" {
		return nil, ErrAIAPIKeyMissing
	}

	payload := chatCompletionRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: planSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := s.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建聊天补全请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "habitloop-ai/1.0")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求聊天补全接口失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("读取聊天补全响应失败: %w", err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("解析聊天补全响应失败: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(completion.Error.Message)
		if errMsg == "" {
			errMsg = resp.Status
		}
		return nil, fmt.Errorf("聊天补全接口返回错误：%s", errMsg)
	}

	if len(completion.Choices) == 0 {
		return nil, errors.New("聊天补全接口未返回结果")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)

	var items []PlanItem
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, fmt.Errorf("模型输出不是合法的日程 JSON: %w", err)
	}
	return items, nil
}
