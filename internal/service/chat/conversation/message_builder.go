package conversation

import (
	"log/slog"
	"strings"

	"arbor/internal/config"
	chatModels "arbor/internal/domain/models/chat"
)

// MessageBuilder converts an active conversation path into the ordered
// message list for a completion request. This is a pure conversion service;
// path resolution happens in the caller.
type MessageBuilder struct {
	logger *slog.Logger
}

// NewMessageBuilder creates a new MessageBuilder
func NewMessageBuilder(logger *slog.Logger) *MessageBuilder {
	return &MessageBuilder{
		logger: logger,
	}
}

// BuildMessages assembles the request payload from an active path:
//
//  1. the system prompt leads, unconditionally;
//  2. at most the last config.ContextWindowMessages path entries are kept,
//     older turns silently drop out to bound request size;
//  3. entries whose text carries the error placeholder prefix are skipped,
//     failed completions are shown to the user but never replayed to the
//     model as history;
//  4. node roles map onto wire roles, content is each node's selected text;
//  5. submitted is appended as a user entry unless the final emitted entry
//     already equals it, which guards against double-counting the path tip.
func (mb *MessageBuilder) BuildMessages(
	path []chatModels.PathEntry,
	settings chatModels.GenerationSettings,
	submitted string,
) []chatModels.PromptMessage {
	messages := make([]chatModels.PromptMessage, 0, len(path)+2)
	messages = append(messages, chatModels.PromptMessage{
		Role:    chatModels.MessageRoleSystem,
		Content: settings.SystemPrompt,
	})

	window := path
	if len(window) > config.ContextWindowMessages {
		window = window[len(window)-config.ContextWindowMessages:]
	}

	for _, entry := range window {
		if strings.HasPrefix(entry.Text, config.ErrorReplyPrefix) {
			mb.logger.Debug("skipping error placeholder in context",
				"node_id", entry.Node.ID,
			)
			continue
		}

		messages = append(messages, chatModels.PromptMessage{
			Role:    wireRole(entry.Node.Role),
			Content: entry.Text,
		})
	}

	if messages[len(messages)-1].Content != submitted {
		messages = append(messages, chatModels.PromptMessage{
			Role:    chatModels.MessageRoleUser,
			Content: submitted,
		})
	}

	return messages
}

func wireRole(role chatModels.Role) string {
	if role == chatModels.RoleAssistant {
		return chatModels.MessageRoleAssistant
	}
	return chatModels.MessageRoleUser
}
