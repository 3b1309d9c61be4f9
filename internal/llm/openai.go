package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"randechat/internal/config"
	"randechat/internal/utils"
)

// OpenAIModel talks to any OpenAI-compatible /chat/completions endpoint
type OpenAIModel struct {
	config     config.OpenAIConfig
	extraBody  map[string]any
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIModel creates an OpenAI-compatible backend
func NewOpenAIModel(cfg config.OpenAIConfig, timeout time.Duration, logger *zap.Logger) (*OpenAIModel, error) {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrDisabled)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &OpenAIModel{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	if cfg.ChatExtraBody != "" {
		if err := json.Unmarshal([]byte(cfg.ChatExtraBody), &m.extraBody); err != nil {
			return nil, fmt.Errorf("failed to parse OPENAI_CHAT_EXTRA_BODY: %w", err)
		}
	}
	return m, nil
}

// Name returns the model id
func (m *OpenAIModel) Name() string {
	return "openai/" + m.config.ChatModel
}

// NewConversation starts an empty dialogue
func (m *OpenAIModel) NewConversation(systemPrompt string, tools []Tool) Conversation {
	c := &openAIConversation{model: m}
	if systemPrompt != "" {
		c.messages = append(c.messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	for _, t := range tools {
		c.tools = append(c.tools, ToolSpec{
			Type: "function",
			Function: FunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return c
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []ChatMessage  `json:"messages"`
	Tools       []ToolSpec     `json:"tools,omitempty"`
	ToolChoice  string         `json:"tool_choice,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	TopP        float64        `json:"top_p,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	ExtraBody   map[string]any `json:"extra_body,omitempty"`
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolSpec declares a callable function
type ToolSpec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the function part of a ToolSpec
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is a function call emitted by the assistant. Arguments is a JSON string.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChatCompletionResponse represents the API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatCompletion performs a chat completion request
func (m *OpenAIModel) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = m.config.ChatModel
	}
	if req.Temperature == 0 && m.config.ChatTemperature > 0 {
		req.Temperature = m.config.ChatTemperature
	}
	if req.TopP == 0 && m.config.ChatTopP > 0 {
		req.TopP = m.config.ChatTopP
	}
	if req.MaxTokens == 0 && m.config.ChatMaxTokens > 0 {
		req.MaxTokens = m.config.ChatMaxTokens
	}
	if req.ExtraBody == nil {
		req.ExtraBody = m.extraBody
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", m.config.APIBase)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.config.APIKey))

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, utils.TruncateRunes(string(body), 500))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	m.logger.Debug("chat completion",
		zap.String("model", result.Model),
		zap.Int("total_tokens", result.Usage.TotalTokens))

	return &result, nil
}

type openAIConversation struct {
	model    *OpenAIModel
	tools    []ToolSpec
	messages []ChatMessage
}

func (c *openAIConversation) Send(ctx context.Context, msg Message) (*Response, error) {
	pending := make([]ChatMessage, 0, len(c.messages)+len(msg.Results)+1)
	pending = append(pending, c.messages...)

	if len(msg.Results) == 0 {
		pending = append(pending, ChatMessage{Role: "user", Content: msg.Text})
	}
	for _, r := range msg.Results {
		content, err := json.Marshal(r.Response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result of %s: %w", r.Name, err)
		}
		pending = append(pending, ChatMessage{Role: "tool", ToolCallID: r.ID, Content: string(content)})
	}

	req := ChatCompletionRequest{Messages: pending, Tools: c.tools}
	if len(c.tools) > 0 {
		req.ToolChoice = "auto"
	}

	result, err := c.model.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	reply := result.Choices[0].Message
	reply.Role = "assistant"

	out := &Response{}
	if reply.Content != "" {
		out.Parts = append(out.Parts, Part{Text: reply.Content})
	}
	for i := range reply.ToolCalls {
		tc := &reply.ToolCalls[i]
		if tc.ID == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		args, err := utils.ParseToolArguments(tc.Function.Arguments)
		if err != nil {
			c.model.logger.Warn("unparseable tool arguments",
				zap.String("tool", tc.Function.Name),
				zap.Error(err))
			args = map[string]any{}
		}
		out.Parts = append(out.Parts, Part{Call: &FunctionCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}})
	}

	c.messages = append(pending, reply)
	return out, nil
}

func (c *openAIConversation) Mark() int { return len(c.messages) }

func (c *openAIConversation) Rewind(mark int) {
	if mark >= 0 && mark < len(c.messages) {
		c.messages = c.messages[:mark]
	}
}
