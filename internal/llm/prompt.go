package llm

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed prompts/system_cs.txt
var defaultSystemPrompt string

// DefaultSystemPrompt returns the built-in Czech persona
func DefaultSystemPrompt() string {
	return strings.TrimSpace(defaultSystemPrompt)
}

// LoadSystemPrompt reads the system prompt from path, or returns the built-in
// one when path is empty
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return prompt, nil
}
