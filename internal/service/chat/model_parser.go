package chat

import (
	"fmt"
	"strings"
)

// ModelInfo contains parsed provider and model information
type ModelInfo struct {
	Provider string // Provider name: "local", "lorem"
	Model    string // Model identifier for that provider
}

// ParseModel extracts provider information from a model string
//
// Supported formats:
//   - "llama-3.1-8b-instruct" → {Provider: "local", Model: "llama-3.1-8b-instruct"}
//   - "lorem-fast" → {Provider: "lorem", Model: "lorem-fast"}
//   - "lorem/lorem-fast" → {Provider: "lorem", Model: "lorem-fast"}
//   - "local/custom-finetune" → {Provider: "local", Model: "custom-finetune"}
//
// Rules:
//   - If model contains "/" → split on first "/" to extract provider
//   - Else → infer provider from model prefix; anything not recognized
//     belongs to the local server, which serves arbitrary model names
func ParseModel(modelStr string) (*ModelInfo, error) {
	if modelStr == "" {
		return nil, fmt.Errorf("model string cannot be empty")
	}

	// Check if provider is explicitly specified (contains "/")
	if strings.Contains(modelStr, "/") {
		parts := strings.SplitN(modelStr, "/", 2)

		provider := parts[0]
		model := parts[1]

		if provider == "" {
			return nil, fmt.Errorf("provider cannot be empty in model string: %s", modelStr)
		}

		if model == "" {
			return nil, fmt.Errorf("model cannot be empty in model string: %s", modelStr)
		}

		return &ModelInfo{
			Provider: provider,
			Model:    model,
		}, nil
	}

	return &ModelInfo{
		Provider: inferProvider(modelStr),
		Model:    modelStr,
	}, nil
}

// inferProvider infers the provider from model name prefix
func inferProvider(model string) string {
	modelLower := strings.ToLower(model)

	// Lorem mock provider (for testing)
	if strings.HasPrefix(modelLower, "lorem-") {
		return "lorem"
	}

	// Everything else is served by the local completion server
	return "local"
}
