package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"randechat/internal/config"
)

// GeminiModel talks to Google Gemini through the genai SDK
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewGeminiModel creates a Gemini backend. baseURL overrides the API endpoint
// and is empty in production.
func NewGeminiModel(ctx context.Context, cfg config.GeminiConfig, baseURL string, logger *zap.Logger) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrDisabled)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiModel{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}, nil
}

// Name returns the model id
func (m *GeminiModel) Name() string {
	return "gemini/" + m.model
}

// NewConversation starts an empty dialogue
func (m *GeminiModel) NewConversation(systemPrompt string, tools []Tool) Conversation {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(m.temperature),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return &geminiConversation{model: m, config: config}
}

type geminiConversation struct {
	model   *GeminiModel
	config  *genai.GenerateContentConfig
	history []*genai.Content
}

func (c *geminiConversation) Send(ctx context.Context, msg Message) (*Response, error) {
	content, err := toGenaiContent(msg)
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(c.history)+1)
	contents = append(contents, c.history...)
	contents = append(contents, content)

	resp, err := c.model.client.Models.GenerateContent(ctx, c.model.model, contents, c.config)
	if err != nil {
		return nil, fmt.Errorf("generateContent: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("generateContent: response has no candidates")
	}

	reply := resp.Candidates[0].Content
	if reply.Role == "" {
		reply.Role = "model"
	}
	c.history = append(contents, reply)

	out := fromGenaiContent(reply)
	c.model.logger.Debug("gemini reply",
		zap.Int("parts", len(out.Parts)),
		zap.Int("calls", len(out.FunctionCalls())))
	return out, nil
}

func (c *geminiConversation) Mark() int { return len(c.history) }

func (c *geminiConversation) Rewind(mark int) {
	if mark >= 0 && mark < len(c.history) {
		c.history = c.history[:mark]
	}
}

func toGenaiContent(msg Message) (*genai.Content, error) {
	if len(msg.Results) == 0 {
		return genai.NewContentFromText(msg.Text, genai.RoleUser), nil
	}

	parts := make([]*genai.Part, 0, len(msg.Results))
	for _, r := range msg.Results {
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       r.ID,
				Name:     r.Name,
				Response: r.Response,
			},
		})
	}
	return &genai.Content{Role: "user", Parts: parts}, nil
}

func fromGenaiContent(c *genai.Content) *Response {
	out := &Response{}
	for _, p := range c.Parts {
		if p == nil || p.Thought {
			continue
		}
		if p.FunctionCall != nil {
			args := p.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			out.Parts = append(out.Parts, Part{Call: &FunctionCall{
				ID:   p.FunctionCall.ID,
				Name: p.FunctionCall.Name,
				Args: args,
			}})
			continue
		}
		if p.Text != "" {
			out.Parts = append(out.Parts, Part{Text: p.Text})
		}
	}
	return out
}

// toGenaiSchema converts a JSON schema map into the genai schema type
func toGenaiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	s.Enum = stringList(m["enum"])
	s.Required = stringList(m["required"])
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(sub)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	return s
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
