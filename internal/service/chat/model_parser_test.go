package chat

import (
	"testing"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		name         string
		modelStr     string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{
			name:         "bare local model",
			modelStr:     "llama-3.1-8b-instruct",
			wantProvider: "local",
			wantModel:    "llama-3.1-8b-instruct",
			wantErr:      false,
		},
		{
			name:         "local model with dots and version",
			modelStr:     "qwen2.5-14b-instruct",
			wantProvider: "local",
			wantModel:    "qwen2.5-14b-instruct",
			wantErr:      false,
		},
		{
			name:         "explicit local prefix",
			modelStr:     "local/custom-finetune",
			wantProvider: "local",
			wantModel:    "custom-finetune",
			wantErr:      false,
		},
		{
			name:         "explicit lorem prefix",
			modelStr:     "lorem/lorem-fast",
			wantProvider: "lorem",
			wantModel:    "lorem-fast",
			wantErr:      false,
		},
		{
			name:         "nested model path keeps remainder",
			modelStr:     "local/org/model-name",
			wantProvider: "local",
			wantModel:    "org/model-name",
			wantErr:      false,
		},
		{
			name:         "lorem-fast model",
			modelStr:     "lorem-fast",
			wantProvider: "lorem",
			wantModel:    "lorem-fast",
			wantErr:      false,
		},
		{
			name:         "lorem-slow model",
			modelStr:     "lorem-slow",
			wantProvider: "lorem",
			wantModel:    "lorem-slow",
			wantErr:      false,
		},
		{
			name:     "empty string",
			modelStr: "",
			wantErr:  true,
		},
		{
			name:     "provider without model",
			modelStr: "lorem/",
			wantErr:  true,
		},
		{
			name:     "model without provider",
			modelStr: "/llama-3.1-8b-instruct",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModel(tt.modelStr)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseModel() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("ParseModel() unexpected error: %v", err)
				return
			}

			if got.Provider != tt.wantProvider {
				t.Errorf("ParseModel() provider = %v, want %v", got.Provider, tt.wantProvider)
			}

			if got.Model != tt.wantModel {
				t.Errorf("ParseModel() model = %v, want %v", got.Model, tt.wantModel)
			}
		})
	}
}

func TestInferProvider(t *testing.T) {
	tests := []struct {
		name         string
		model        string
		wantProvider string
	}{
		{"lorem-fast model", "lorem-fast", "lorem"},
		{"lorem-slow model", "lorem-slow", "lorem"},
		{"LOREM uppercase", "LOREM-FAST", "lorem"},
		{"llama model", "llama-3.1-8b-instruct", "local"},
		{"mistral model", "mistral-7b-instruct", "local"},
		{"arbitrary name", "my-custom-model", "local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inferProvider(tt.model)
			if got != tt.wantProvider {
				t.Errorf("inferProvider() = %v, want %v", got, tt.wantProvider)
			}
		})
	}
}
