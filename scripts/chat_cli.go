package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

const replyTimeout = 5 * time.Minute

// CLI drives the arbor HTTP API for manual smoke testing. It talks to a
// running server only; nothing here touches the store directly.
type CLI struct {
	baseURL string
	client  *http.Client
	scanner *bufio.Scanner
}

type conversationSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	NodeCount int       `json:"node_count"`
}

type pathNode struct {
	ID              string `json:"id"`
	Role            string `json:"role"`
	Text            string `json:"text"`
	VersionCount    int    `json:"version_count"`
	SelectedVersion int    `json:"selected_version"`
	SiblingIndex    int    `json:"sibling_index"`
	SiblingCount    int    `json:"sibling_count"`
}

type conversationDetail struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Settings map[string]interface{} `json:"settings"`
	Path     []pathNode             `json:"path"`
}

func main() {
	baseURL := os.Getenv("ARBOR_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	cli := &CLI{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No client timeout: replies and event streams are long-lived,
		// individual requests carry their own context deadlines.
		client:  &http.Client{},
		scanner: bufio.NewScanner(os.Stdin),
	}

	cli.run()
}

func (cli *CLI) run() {
	fmt.Printf("\n%s╔══════════════════════════════════════╗%s\n", colorCyan, colorReset)
	fmt.Printf("%s║        Arbor Chat Test CLI           ║%s\n", colorCyan, colorReset)
	fmt.Printf("%s╚══════════════════════════════════════╝%s\n", colorCyan, colorReset)
	fmt.Printf("%sServer: %s%s\n", colorBlue, cli.baseURL, colorReset)

	if err := cli.checkHealth(); err != nil {
		fmt.Printf("%s❌ Server not reachable: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	for {
		fmt.Println("\n" + strings.Repeat("─", 40))
		fmt.Println("Main Menu:")
		fmt.Println("1. Create new conversation and chat")
		fmt.Println("2. List conversations")
		fmt.Println("3. Continue existing conversation")
		fmt.Println("4. Show default settings")
		fmt.Println("5. Watch raw event stream")
		fmt.Println("6. Exit")
		fmt.Print("\nSelect option (1-6): ")

		choice := cli.readLine()
		fmt.Println()

		switch choice {
		case "1":
			cli.newConversationFlow()
		case "2":
			cli.listConversations()
		case "3":
			cli.continueConversation()
		case "4":
			cli.showSettings()
		case "5":
			cli.watchEvents()
		case "6":
			fmt.Printf("%s✓ Goodbye!%s\n", colorGreen, colorReset)
			return
		default:
			fmt.Printf("%s⚠ Invalid choice. Please enter 1-6.%s\n", colorYellow, colorReset)
		}
	}
}

func (cli *CLI) newConversationFlow() {
	fmt.Printf("%s=== Create New Conversation ===%s\n\n", colorCyan, colorReset)

	fmt.Print("Name (press enter for default): ")
	name := cli.readLine()

	var detail conversationDetail
	if err := cli.send(http.MethodPost, "/api/conversations", map[string]interface{}{"name": name}, &detail); err != nil {
		fmt.Printf("%s❌ Failed to create conversation: %v%s\n", colorRed, err, colorReset)
		return
	}
	fmt.Printf("%s✓ Conversation created: %s (%s)%s\n", colorGreen, detail.Name, detail.ID, colorReset)

	cli.chatLoop(detail.ID)
}

func (cli *CLI) continueConversation() {
	fmt.Printf("%s=== Continue Conversation ===%s\n\n", colorCyan, colorReset)

	selected, ok := cli.selectConversation()
	if !ok {
		return
	}

	detail, err := cli.getDetail(selected.ID)
	if err != nil {
		fmt.Printf("%s❌ Failed to load conversation: %v%s\n", colorRed, err, colorReset)
		return
	}
	cli.displayPath(detail)

	cli.chatLoop(selected.ID)
}

// chatLoop reads messages until /quit. Slash commands exercise the node
// endpoints; anything else is sent as a user message.
func (cli *CLI) chatLoop(conversationID string) {
	fmt.Printf("\n%sType a message, or /path, /regen, /rename, /quit%s\n", colorBlue, colorReset)

	for {
		fmt.Print("\nYou: ")
		input := cli.readLine()

		switch {
		case input == "":
			continue

		case input == "/quit":
			return

		case input == "/path":
			detail, err := cli.getDetail(conversationID)
			if err != nil {
				fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
				continue
			}
			cli.displayPath(detail)

		case input == "/regen":
			cli.regenerate(conversationID)

		case input == "/rename":
			fmt.Print("New name: ")
			name := cli.readLine()
			var detail conversationDetail
			if err := cli.send(http.MethodPatch, "/api/conversations/"+conversationID, map[string]interface{}{"name": name}, &detail); err != nil {
				fmt.Printf("%s❌ Rename failed: %v%s\n", colorRed, err, colorReset)
				continue
			}
			fmt.Printf("%s✓ Renamed to: %s%s\n", colorGreen, detail.Name, colorReset)

		default:
			cli.sendMessage(conversationID, input)
		}
	}
}

// sendMessage opens the event stream before posting so an instant
// completion cannot resolve between the two.
func (cli *CLI) sendMessage(conversationID, text string) {
	stream, err := cli.openEventStream(conversationID, replyTimeout)
	if err != nil {
		fmt.Printf("%s❌ Event stream failed: %v%s\n", colorRed, err, colorReset)
		return
	}
	defer stream.close()

	var sent struct {
		NodeID string `json:"node_id"`
	}
	if err := cli.send(http.MethodPost, "/api/conversations/"+conversationID+"/messages", map[string]interface{}{"text": text}, &sent); err != nil {
		fmt.Printf("%s❌ Send failed: %v%s\n", colorRed, err, colorReset)
		return
	}

	fmt.Printf("%s⏳ Waiting for reply...%s\n", colorBlue, colorReset)
	cli.awaitReply(conversationID, sent.NodeID, stream)
}

func (cli *CLI) regenerate(conversationID string) {
	detail, err := cli.getDetail(conversationID)
	if err != nil {
		fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
		return
	}
	if len(detail.Path) == 0 || detail.Path[len(detail.Path)-1].Role != "assistant" {
		fmt.Printf("%s⚠ Nothing to regenerate yet%s\n", colorYellow, colorReset)
		return
	}

	replyNode := detail.Path[len(detail.Path)-1]
	userNode := detail.Path[len(detail.Path)-2]

	stream, err := cli.openEventStream(conversationID, replyTimeout)
	if err != nil {
		fmt.Printf("%s❌ Event stream failed: %v%s\n", colorRed, err, colorReset)
		return
	}
	defer stream.close()

	body := map[string]interface{}{"conversation_id": conversationID}
	if err := cli.send(http.MethodPost, "/api/nodes/"+replyNode.ID+"/regenerate", body, nil); err != nil {
		fmt.Printf("%s❌ Regenerate failed: %v%s\n", colorRed, err, colorReset)
		return
	}

	fmt.Printf("%s⏳ Regenerating...%s\n", colorBlue, colorReset)
	cli.awaitReply(conversationID, userNode.ID, stream)
}

// awaitReply scans the event stream for the completion that answers
// forNodeID, then prints the reply text from a fresh detail fetch.
func (cli *CLI) awaitReply(conversationID, forNodeID string, stream *eventStream) {
	replyNodeID, err := stream.waitForCompletion(forNodeID)
	if err != nil {
		fmt.Printf("%s❌ No reply: %v%s\n", colorRed, err, colorReset)
		return
	}

	detail, err := cli.getDetail(conversationID)
	if err != nil {
		fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
		return
	}

	for _, node := range detail.Path {
		if node.ID == replyNodeID {
			cli.displayNode(node)
			return
		}
	}
	fmt.Printf("%s⚠ Reply %s is not on the active path%s\n", colorYellow, replyNodeID, colorReset)
}

func (cli *CLI) listConversations() {
	fmt.Printf("%s=== Conversations ===%s\n\n", colorCyan, colorReset)

	conversations, err := cli.list()
	if err != nil {
		fmt.Printf("%s❌ Failed to list conversations: %v%s\n", colorRed, err, colorReset)
		return
	}

	if len(conversations) == 0 {
		fmt.Printf("%s⚠ No conversations yet%s\n", colorYellow, colorReset)
		return
	}

	for i, conv := range conversations {
		fmt.Printf("%d. %s (%d nodes, created %s)\n",
			i+1, conv.Name, conv.NodeCount, conv.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
}

func (cli *CLI) selectConversation() (conversationSummary, bool) {
	conversations, err := cli.list()
	if err != nil {
		fmt.Printf("%s❌ Failed to list conversations: %v%s\n", colorRed, err, colorReset)
		return conversationSummary{}, false
	}

	if len(conversations) == 0 {
		fmt.Printf("%s⚠ No conversations yet%s\n", colorYellow, colorReset)
		return conversationSummary{}, false
	}

	fmt.Println("Select conversation:")
	for i, conv := range conversations {
		fmt.Printf("%d. %s (%d nodes)\n", i+1, conv.Name, conv.NodeCount)
	}

	fmt.Print("\nSelect number (or 0 to cancel): ")
	choice := cli.readLine()
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 1 || idx > len(conversations) {
		if idx != 0 {
			fmt.Printf("%s⚠ Invalid choice%s\n", colorYellow, colorReset)
		}
		return conversationSummary{}, false
	}

	return conversations[idx-1], true
}

func (cli *CLI) showSettings() {
	fmt.Printf("%s=== Default Settings ===%s\n\n", colorCyan, colorReset)

	var settings map[string]interface{}
	if err := cli.get("/api/settings", &settings); err != nil {
		fmt.Printf("%s❌ Failed to load settings: %v%s\n", colorRed, err, colorReset)
		return
	}

	jsonBytes, _ := json.MarshalIndent(settings, "", "  ")
	fmt.Println(string(jsonBytes))

	fmt.Print("\nNew default model (press enter to skip): ")
	model := cli.readLine()
	if model == "" {
		return
	}

	settings["model"] = model
	if err := cli.send(http.MethodPut, "/api/settings", settings, &settings); err != nil {
		fmt.Printf("%s❌ Update failed: %v%s\n", colorRed, err, colorReset)
		return
	}
	fmt.Printf("%s✓ Default model is now %s%s\n", colorGreen, settings["model"], colorReset)
}

// watchEvents dumps raw SSE frames for one conversation. Ctrl+C exits.
func (cli *CLI) watchEvents() {
	fmt.Printf("%s=== Watch Events ===%s\n\n", colorCyan, colorReset)

	selected, ok := cli.selectConversation()
	if !ok {
		return
	}

	resp, err := cli.client.Get(cli.baseURL + "/api/conversations/" + selected.ID + "/events")
	if err != nil {
		fmt.Printf("%s❌ Stream failed: %v%s\n", colorRed, err, colorReset)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("%s❌ Stream failed: %s%s\n", colorRed, resp.Status, colorReset)
		return
	}

	fmt.Printf("%sStreaming events for %s (Ctrl+C to exit)...%s\n\n", colorBlue, selected.Name, colorReset)
	_, _ = io.Copy(os.Stdout, resp.Body)
}

func (cli *CLI) displayPath(detail *conversationDetail) {
	fmt.Printf("\n%s--- %s ---%s\n", colorCyan, detail.Name, colorReset)
	if len(detail.Path) == 0 {
		fmt.Printf("%s(empty conversation)%s\n", colorYellow, colorReset)
		return
	}
	for _, node := range detail.Path {
		cli.displayNode(node)
		fmt.Println()
	}
}

func (cli *CLI) displayNode(node pathNode) {
	roleColor := colorBlue
	if node.Role == "assistant" {
		roleColor = colorGreen
	}
	fmt.Printf("%s[%s]%s\n", roleColor, strings.ToUpper(node.Role), colorReset)
	fmt.Println(node.Text)

	if node.VersionCount > 1 || node.SiblingCount > 1 {
		fmt.Printf("%s  version %d/%d | sibling %d/%d | node %s%s\n", colorYellow,
			node.SelectedVersion+1, node.VersionCount,
			node.SiblingIndex+1, node.SiblingCount,
			node.ID, colorReset)
	}
}

// eventStream is an open SSE connection being scanned for frames.
type eventStream struct {
	cancel  context.CancelFunc
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (cli *CLI) openEventStream(conversationID string, timeout time.Duration) (*eventStream, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cli.baseURL+"/api/conversations/"+conversationID+"/events", nil)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := cli.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("event stream returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &eventStream{cancel: cancel, body: resp.Body, scanner: scanner}, nil
}

func (s *eventStream) close() {
	s.body.Close()
	s.cancel()
}

// waitForCompletion reads frames until a completion_resolved event for
// forNodeID arrives, returning the reply node id.
func (s *eventStream) waitForCompletion(forNodeID string) (string, error) {
	eventType := ""
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			if eventType != "completion_resolved" {
				continue
			}
			var event struct {
				Data struct {
					NodeID      string `json:"node_id"`
					ReplyNodeID string `json:"reply_node_id"`
					IsError     bool   `json:"is_error"`
				} `json:"data"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}
			if event.Data.NodeID != forNodeID {
				continue
			}
			if event.Data.IsError {
				fmt.Printf("%s⚠ Completion failed, reply is an error placeholder%s\n", colorYellow, colorReset)
			}
			return event.Data.ReplyNodeID, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("event stream closed before completion")
}

func (cli *CLI) checkHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cli.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := cli.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %s", resp.Status)
	}
	return nil
}

func (cli *CLI) list() ([]conversationSummary, error) {
	var conversations []conversationSummary
	if err := cli.get("/api/conversations", &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (cli *CLI) getDetail(conversationID string) (*conversationDetail, error) {
	var detail conversationDetail
	if err := cli.get("/api/conversations/"+conversationID, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (cli *CLI) get(path string, out interface{}) error {
	return cli.do(http.MethodGet, path, nil, out)
}

func (cli *CLI) send(method, path string, body, out interface{}) error {
	return cli.do(method, path, body, out)
}

func (cli *CLI) do(method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, cli.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := cli.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, &problem); err == nil && problem.Detail != "" {
			return fmt.Errorf("%s (%d)", problem.Detail, resp.StatusCode)
		}
		return fmt.Errorf("%s (%d)", strings.TrimSpace(string(data)), resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (cli *CLI) readLine() string {
	if !cli.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(cli.scanner.Text())
}
