// Package store holds every conversation in memory and serializes mutations
// per conversation. It is the single writer for conversation trees: readers
// get resolved snapshots, and completion work leaves through the event bus
// instead of blocking the caller.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"arbor/internal/config"
	"arbor/internal/domain"
	chatModels "arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/events"
)

// MessageBuilder assembles the prompt window for a completion request.
type MessageBuilder interface {
	BuildMessages(path []chatModels.PathEntry, settings chatModels.GenerationSettings, submitted string) []chatModels.PromptMessage
}

// Publisher is the slice of the event router the store publishes through.
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// entry pairs a conversation with its own lock so operations on different
// conversations never contend. The deleted flag closes the race between a
// lookup and a concurrent delete.
type entry struct {
	mu           sync.Mutex
	conv         *chatModels.Conversation
	titlePending bool
	deleted      bool
}

// Service implements the conversation store on an in-memory map.
type Service struct {
	mu            sync.RWMutex
	conversations map[string]*entry

	settings chatSvc.SettingsService
	builder  MessageBuilder
	bus      Publisher
	logger   *slog.Logger
}

// NewService creates the conversation store.
func NewService(settings chatSvc.SettingsService, builder MessageBuilder, bus Publisher, logger *slog.Logger) chatSvc.ConversationStore {
	return &Service{
		conversations: make(map[string]*entry),
		settings:      settings,
		builder:       builder,
		bus:           bus,
		logger:        logger,
	}
}

// CreateConversation creates an empty conversation whose settings snapshot
// the stored defaults at creation time.
func (s *Service) CreateConversation(ctx context.Context, req *chatSvc.CreateConversationRequest) (*chatSvc.ConversationDetail, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.validateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	defaults, err := s.settings.Defaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load default settings: %w", err)
	}

	conv := chatModels.NewConversation(name, defaults)
	d := detail(conv)

	s.mu.Lock()
	s.conversations[conv.ID] = &entry{conv: conv}
	s.mu.Unlock()

	s.logger.Info("conversation created", "conversation_id", conv.ID, "name", conv.Name)
	s.publishEvent(conv.ID, chatModels.EventConversationCreated, chatModels.ConversationCreatedData{Name: conv.Name})
	return d, nil
}

// ListConversations returns summaries of every live conversation, newest
// first.
func (s *Service) ListConversations(ctx context.Context) ([]chatModels.ConversationSummary, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.conversations))
	for _, e := range s.conversations {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	summaries := make([]chatModels.ConversationSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			summaries = append(summaries, e.conv.Summary())
		}
		e.mu.Unlock()
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// GetConversation returns the conversation's resolved active path.
func (s *Service) GetConversation(ctx context.Context, conversationID string) (*chatSvc.ConversationDetail, error) {
	e, err := s.locked(conversationID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return detail(e.conv), nil
}

// GetTree returns a deep copy of the full node arena, detached branches
// included.
func (s *Service) GetTree(ctx context.Context, conversationID string) (*chatModels.Tree, error) {
	e, err := s.locked(conversationID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.conv.Tree.Clone(), nil
}

// RenameConversation replaces the conversation name. Renaming also settles
// any outstanding title suggestion.
func (s *Service) RenameConversation(ctx context.Context, conversationID, name string) error {
	name = strings.TrimSpace(name)
	if err := s.validateRename(name); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	e, err := s.locked(conversationID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	e.conv.Name = name
	e.titlePending = false

	s.logger.Info("conversation renamed", "conversation_id", conversationID, "name", name)
	s.publishEvent(conversationID, chatModels.EventConversationRenamed, chatModels.ConversationRenamedData{Name: name})
	return nil
}

// DeleteConversation removes the conversation. Replies still in flight for
// it are discarded when they arrive.
func (s *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	e, ok := s.conversations[conversationID]
	if ok {
		delete(s.conversations, conversationID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()

	s.logger.Info("conversation deleted", "conversation_id", conversationID)
	s.publishEvent(conversationID, chatModels.EventConversationDeleted, nil)
	return nil
}

// SendUserMessage appends a user node at the cursor and requests a
// completion for it. The reply arrives later through ReceiveAssistantReply.
func (s *Service) SendUserMessage(ctx context.Context, conversationID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if err := s.validateText(text); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	e, err := s.locked(conversationID)
	if err != nil {
		return "", err
	}
	defer e.mu.Unlock()

	conv := e.conv
	nodeID := conv.Tree.AppendNode(chatModels.RoleUser, text)
	messages := s.builder.BuildMessages(conv.Tree.ActivePath(), conv.Settings, text)

	node, _ := conv.Tree.Node(nodeID)
	s.publishEvent(conv.ID, chatModels.EventNodeAppended, chatModels.NodeAppendedData{
		NodeID:   nodeID,
		ParentID: node.ParentID,
		Role:     chatModels.RoleUser,
		Text:     text,
		OnPath:   true,
	})
	s.requestCompletion(conv, nodeID, messages)

	s.logger.Info("user message sent",
		"conversation_id", conv.ID, "node_id", nodeID, "model", conv.Settings.Model)
	return nodeID, nil
}

// ReceiveAssistantReply attaches reply text under the user node captured at
// request time. The first reply for a node creates its assistant child;
// later ones (regenerations, edits) land as new versions of that child. The
// cursor advances only if the captured node is still current, so replies to
// branches the user has left change nothing visible.
func (s *Service) ReceiveAssistantReply(ctx context.Context, conversationID, forNodeID, text string) error {
	s.mu.RLock()
	e, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if !ok {
		s.logger.Debug("discarding reply for unknown conversation",
			"conversation_id", conversationID, "node_id", forNodeID)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		s.logger.Debug("discarding reply for deleted conversation",
			"conversation_id", conversationID, "node_id", forNodeID)
		return nil
	}

	conv := e.conv
	tree := conv.Tree
	if _, err := tree.Node(forNodeID); err != nil {
		return err
	}

	wasCurrent := tree.IsCurrent(forNodeID)
	isError := strings.HasPrefix(text, config.ErrorReplyPrefix)

	var replyNodeID string
	if child := tree.AssistantChild(forNodeID); child != nil {
		idx := child.AddVersion(text)
		replyNodeID = child.ID
		s.publishEvent(conv.ID, chatModels.EventVersionAdded, chatModels.VersionAddedData{
			NodeID: replyNodeID, VersionIndex: idx, Text: text,
		})
	} else {
		childID, err := tree.AppendChild(forNodeID, chatModels.RoleAssistant, text)
		if err != nil {
			return err
		}
		replyNodeID = childID
		s.publishEvent(conv.ID, chatModels.EventNodeAppended, chatModels.NodeAppendedData{
			NodeID:   replyNodeID,
			ParentID: &forNodeID,
			Role:     chatModels.RoleAssistant,
			Text:     text,
			OnPath:   wasCurrent,
		})
	}

	if wasCurrent {
		if err := tree.SetCurrent(replyNodeID); err != nil {
			return err
		}
		s.publishEvent(conv.ID, chatModels.EventCursorMoved, chatModels.CursorMovedData{NodeID: replyNodeID})
	}

	onPath := tree.OnPath(replyNodeID)
	s.publishEvent(conv.ID, chatModels.EventCompletionResolved, chatModels.CompletionResolvedData{
		NodeID:      forNodeID,
		ReplyNodeID: replyNodeID,
		OnPath:      onPath,
		IsError:     isError,
	})

	s.maybeRequestTitle(e)

	s.logger.Info("assistant reply stored",
		"conversation_id", conv.ID, "node_id", replyNodeID,
		"on_path", onPath, "is_error", isError)
	return nil
}

// EditMessage appends a version to a user node, rewinds the cursor to it,
// and requests a fresh completion for the rewound transcript.
func (s *Service) EditMessage(ctx context.Context, conversationID, nodeID, text string) (int, error) {
	text = strings.TrimSpace(text)
	if err := s.validateText(text); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	e, err := s.locked(conversationID)
	if err != nil {
		return 0, err
	}
	defer e.mu.Unlock()

	conv := e.conv
	idx, err := conv.Tree.EditUserMessage(nodeID, text)
	if err != nil {
		return 0, err
	}
	messages := s.builder.BuildMessages(conv.Tree.ActivePath(), conv.Settings, text)

	s.publishEvent(conv.ID, chatModels.EventVersionAdded, chatModels.VersionAddedData{
		NodeID: nodeID, VersionIndex: idx, Text: text,
	})
	s.publishEvent(conv.ID, chatModels.EventCursorMoved, chatModels.CursorMovedData{NodeID: nodeID})
	s.requestCompletion(conv, nodeID, messages)

	s.logger.Info("message edited",
		"conversation_id", conv.ID, "node_id", nodeID, "version_index", idx)
	return idx, nil
}

// SwitchToNode moves the cursor anywhere in the tree. Sending afterwards
// branches from there.
func (s *Service) SwitchToNode(ctx context.Context, conversationID, nodeID string) error {
	e, err := s.locked(conversationID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := e.conv.Tree.SetCurrent(nodeID); err != nil {
		return err
	}
	s.publishEvent(conversationID, chatModels.EventCursorMoved, chatModels.CursorMovedData{NodeID: nodeID})
	s.logger.Debug("cursor moved", "conversation_id", conversationID, "node_id", nodeID)
	return nil
}

// RegenerateReply requests another completion for the user message an
// assistant node answers. The transcript is rebuilt as seen from that user
// node, so regenerating a detached reply works too; the result lands as a
// new version through ReceiveAssistantReply.
func (s *Service) RegenerateReply(ctx context.Context, conversationID, assistantNodeID string) error {
	e, err := s.locked(conversationID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	conv := e.conv
	node, err := conv.Tree.Node(assistantNodeID)
	if err != nil {
		return err
	}
	if node.Role != chatModels.RoleAssistant {
		return fmt.Errorf("node %s is not an assistant reply: %w", assistantNodeID, domain.ErrValidation)
	}
	if node.ParentID == nil {
		return fmt.Errorf("node %s has no user message to answer: %w", assistantNodeID, domain.ErrValidation)
	}

	forNodeID := *node.ParentID
	path := conv.Tree.PathTo(forNodeID)
	submitted := path[len(path)-1].Text
	messages := s.builder.BuildMessages(path, conv.Settings, submitted)
	s.requestCompletion(conv, forNodeID, messages)

	s.logger.Info("regeneration requested",
		"conversation_id", conv.ID, "node_id", assistantNodeID, "for_node_id", forNodeID)
	return nil
}

// SelectVersion changes which stored version of a node is active.
func (s *Service) SelectVersion(ctx context.Context, conversationID, nodeID string, versionIndex int) error {
	e, err := s.locked(conversationID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := e.conv.Tree.SelectVersion(nodeID, versionIndex); err != nil {
		return err
	}
	s.publishEvent(conversationID, chatModels.EventVersionSelected, chatModels.VersionSelectedData{
		NodeID: nodeID, VersionIndex: versionIndex,
	})
	return nil
}

// ResolveTitleRequest records the outcome of a background title suggestion.
// A non-blank title applies only while the placeholder name survives, so a
// manual rename always wins over a slower suggestion.
func (s *Service) ResolveTitleRequest(ctx context.Context, conversationID, title string) error {
	title = strings.TrimSpace(title)

	s.mu.RLock()
	e, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil
	}

	e.titlePending = false
	if title == "" {
		s.logger.Debug("title suggestion failed, keeping placeholder", "conversation_id", conversationID)
		return nil
	}
	// A rename that landed while the suggestion was in flight wins.
	if !strings.Contains(e.conv.Name, chatModels.DefaultConversationName) {
		return nil
	}
	if len(title) > config.MaxConversationNameLength {
		title = title[:config.MaxConversationNameLength]
	}

	e.conv.Name = title
	s.logger.Info("conversation title applied", "conversation_id", conversationID, "name", title)
	s.publishEvent(conversationID, chatModels.EventConversationRenamed, chatModels.ConversationRenamedData{Name: title})
	return nil
}

// UpdateConversationSettings replaces the per-conversation generation
// settings. Pending completions keep the settings captured at request time.
func (s *Service) UpdateConversationSettings(ctx context.Context, conversationID string, settings *chatModels.GenerationSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings are required", domain.ErrValidation)
	}
	if err := s.validateSettings(settings); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	e, err := s.locked(conversationID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	e.conv.Settings = *settings
	s.logger.Info("conversation settings updated",
		"conversation_id", conversationID, "model", settings.Model, "max_tokens", settings.MaxTokens)
	return nil
}

// locked returns the conversation's entry with its lock held; the caller
// must unlock. Entries deleted between lookup and lock report not found.
func (s *Service) locked(conversationID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return e, nil
}

// requestCompletion hands the prepared prompt to the completion pipeline and
// tells event listeners a reply is pending. Publish failures are logged, not
// returned; the appended node stands either way.
func (s *Service) requestCompletion(conv *chatModels.Conversation, nodeID string, messages []chatModels.PromptMessage) {
	req := chatModels.CompletionRequested{
		ConversationID: conv.ID,
		NodeID:         nodeID,
		Messages:       messages,
		Settings:       conv.Settings,
		RequestedAt:    time.Now().UTC(),
	}
	if err := s.bus.Publish(events.TopicCompletionRequests, req); err != nil {
		s.logger.Error("failed to publish completion request",
			"conversation_id", conv.ID, "node_id", nodeID, "error", err)
		return
	}
	s.publishEvent(conv.ID, chatModels.EventCompletionPending, chatModels.CompletionPendingData{NodeID: nodeID})
}

// maybeRequestTitle publishes one title suggestion request once the
// conversation has a clean first exchange and still carries its placeholder
// name. The pending flag stops concurrent replies from double-requesting;
// ResolveTitleRequest clears it. Called with the entry lock held.
func (s *Service) maybeRequestTitle(e *entry) {
	conv := e.conv
	if e.titlePending || !strings.Contains(conv.Name, chatModels.DefaultConversationName) {
		return
	}
	path := conv.Tree.ActivePath()
	if len(path) < 2 {
		return
	}
	first, second := path[0].Text, path[1].Text
	if strings.HasPrefix(first, config.ErrorReplyPrefix) || strings.HasPrefix(second, config.ErrorReplyPrefix) {
		return
	}

	req := chatModels.TitleRequested{
		ConversationID: conv.ID,
		Model:          conv.Settings.Model,
		Context:        []string{first, second},
		RequestedAt:    time.Now().UTC(),
	}
	if err := s.bus.Publish(events.TopicTitleRequests, req); err != nil {
		s.logger.Error("failed to publish title request", "conversation_id", conv.ID, "error", err)
		return
	}
	e.titlePending = true
	s.logger.Debug("title suggestion requested", "conversation_id", conv.ID, "model", conv.Settings.Model)
}

// publishEvent emits a store event for stream listeners. Delivery is
// best-effort; failures are logged and the mutation stands.
func (s *Service) publishEvent(conversationID, eventType string, data interface{}) {
	event := chatModels.NewStoreEvent(eventType, conversationID, data)
	if err := s.bus.Publish(events.TopicConversationEvents, event); err != nil {
		s.logger.Warn("failed to publish store event",
			"conversation_id", conversationID, "type", eventType, "error", err)
	}
}

// validateName bounds creation names; blank is allowed and falls back to the
// placeholder.
func (s *Service) validateName(name string) error {
	return validation.Validate(name, validation.Length(0, config.MaxConversationNameLength))
}

// validateRename rejects blank names.
func (s *Service) validateRename(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(1, config.MaxConversationNameLength),
	)
}

func (s *Service) validateText(text string) error {
	return validation.Validate(text,
		validation.Required,
		validation.Length(1, config.MaxMessageLength),
	)
}

// validateSettings mirrors the rules applied to the stored defaults.
// Required guards the fields whose zero value is itself out of range; range
// rules skip zero values, which are in range everywhere else.
func (s *Service) validateSettings(settings *chatModels.GenerationSettings) error {
	return validation.ValidateStruct(settings,
		validation.Field(&settings.Model, validation.Required),
		validation.Field(&settings.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&settings.MaxTokens, validation.Required, validation.Min(100), validation.Max(8000)),
		validation.Field(&settings.TopP, validation.Required, validation.Min(0.1), validation.Max(1.0)),
		validation.Field(&settings.TopK, validation.Min(0), validation.Max(100)),
		validation.Field(&settings.FrequencyPenalty, validation.Min(-2.0), validation.Max(2.0)),
		validation.Field(&settings.PresencePenalty, validation.Min(-2.0), validation.Max(2.0)),
	)
}

// detail resolves the active path into the client-facing view. Callers hold
// the conversation lock, or own the conversation exclusively.
func detail(conv *chatModels.Conversation) *chatSvc.ConversationDetail {
	path := conv.Tree.ActivePath()
	nodes := make([]chatSvc.PathNode, 0, len(path))
	for _, pe := range path {
		node := pe.Node
		siblingIndex, siblingCount := 0, 1
		if node.ParentID != nil {
			if parent, err := conv.Tree.Node(*node.ParentID); err == nil {
				siblingCount = len(parent.ChildIDs)
				for i, childID := range parent.ChildIDs {
					if childID == node.ID {
						siblingIndex = i
						break
					}
				}
			}
		}
		nodes = append(nodes, chatSvc.PathNode{
			ID:              node.ID,
			Role:            node.Role,
			Text:            pe.Text,
			VersionCount:    len(node.Versions),
			SelectedVersion: node.SelectedVersion,
			SiblingIndex:    siblingIndex,
			SiblingCount:    siblingCount,
		})
	}
	return &chatSvc.ConversationDetail{
		ID:        conv.ID,
		Name:      conv.Name,
		CreatedAt: conv.CreatedAt,
		Settings:  conv.Settings,
		Path:      nodes,
	}
}
