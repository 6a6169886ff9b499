package config

const (
	// MaxConversationNameLength is the maximum length for conversation
	// names. Names are for list display; anything longer is noise.
	MaxConversationNameLength = 255

	// MaxMessageLength is the maximum length for a single user message.
	// Large enough for pasted code or documents, small enough to keep a
	// single request body bounded.
	MaxMessageLength = 100_000

	// ContextWindowMessages is how many trailing active-path entries are
	// sent to the model. Older turns silently fall out of context.
	ContextWindowMessages = 10

	// ErrorReplyPrefix marks assistant versions that record a failed
	// completion. Prefixed entries never re-enter model context.
	ErrorReplyPrefix = "Error:"
)
