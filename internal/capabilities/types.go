package capabilities

import "gopkg.in/yaml.v3"

// GenerationDefaults holds the out-of-the-box sampling parameters for a
// model. They seed GenerationSettings for new installations and new
// conversations; users override them per conversation afterwards.
type GenerationDefaults struct {
	SystemPrompt     string  `yaml:"system_prompt" json:"system_prompt"`
	Temperature      float64 `yaml:"temperature" json:"temperature"`
	MaxTokens        int     `yaml:"max_tokens" json:"max_tokens"`
	TopP             float64 `yaml:"top_p" json:"top_p"`
	TopK             int     `yaml:"top_k" json:"top_k"` // 0 = omit from requests
	FrequencyPenalty float64 `yaml:"frequency_penalty" json:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty" json:"presence_penalty"`
}

// ModelProfile represents all metadata for a specific model
type ModelProfile struct {
	// Model identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	// Display information
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`

	// Limits
	ContextWindow int `yaml:"context_window" json:"context_window"`
	MaxOutput     int `yaml:"max_output" json:"max_output"`

	// Out-of-the-box generation parameters
	Defaults GenerationDefaults `yaml:"defaults" json:"defaults"`
}

// ProviderModels represents all models for a provider
type ProviderModels struct {
	Provider string         `yaml:"provider" json:"provider"`
	Models   []ModelProfile `yaml:"-" json:"models"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML implements custom YAML unmarshaling to preserve model order from YAML file
func (p *ProviderModels) UnmarshalYAML(node *yaml.Node) error {
	// First, decode the provider field
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "provider" {
			p.Provider = node.Content[i+1].Value
			break
		}
	}

	// Decode models into a map first to get the full data
	type modelsOnly struct {
		Models map[string]ModelProfile `yaml:"models"`
	}
	var m modelsOnly
	if err := node.Decode(&m); err != nil {
		return err
	}

	// Now extract model keys in YAML order and build the slice
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "models" {
			modelsNode := node.Content[i+1]
			// modelsNode.Content alternates: key, value, key, value...
			for j := 0; j < len(modelsNode.Content); j += 2 {
				modelID := modelsNode.Content[j].Value
				if model, ok := m.Models[modelID]; ok {
					model.ID = modelID
					p.Models = append(p.Models, model)
				}
			}
			break
		}
	}

	return nil
}
