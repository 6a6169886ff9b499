package events

// Topic names for the in-process bus.
const (
	// TopicCompletionRequests carries chat.CompletionRequested payloads from
	// the store to the completion worker.
	TopicCompletionRequests = "completion.requests"

	// TopicTitleRequests carries chat.TitleRequested payloads from the store
	// to the title worker.
	TopicTitleRequests = "title.requests"

	// TopicConversationEvents carries chat.StoreEvent payloads to SSE
	// subscribers. Delivery is best-effort; slow clients miss events.
	TopicConversationEvents = "conversation.events"
)
