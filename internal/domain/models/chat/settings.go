package chat

// GenerationSettings holds the sampling parameters and system prompt for a
// conversation. The struct doubles as the persisted settings blob, so every
// field carries a stable snake_case JSON tag.
//
// Valid ranges (enforced by the service layer before any mutation):
// Temperature 0.0-2.0, MaxTokens 100-8000, TopP 0.1-1.0, TopK 1-100 with
// 0 meaning "omit from the request", penalties -2.0-2.0.
type GenerationSettings struct {
	Model            string  `json:"model"`
	SystemPrompt     string  `json:"system_prompt"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	TopK             int     `json:"top_k"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
}
