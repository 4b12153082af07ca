// ABOUTME: HTTP client for the calendar agent service
// ABOUTME: Posts a turn to /api/send and reads the Server-Sent Event response stream

package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EventType represents SSE event types from the agent.
type EventType string

const (
	EventThinking EventType = "thinking"
	EventText     EventType = "text"
	EventConflict EventType = "conflict"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// SSEEvent represents a parsed Server-Sent Event.
type SSEEvent struct {
	Type EventType
	Data string
}

// TextEventData is the JSON structure for text/thinking/done events.
type TextEventData struct {
	Text         string `json:"text,omitempty"`
	FullResponse string `json:"full_response,omitempty"`
}

// ErrorEventData is the JSON structure for error events.
type ErrorEventData struct {
	Error string `json:"error"`
}

// Attachment is voice or image content forwarded with a turn.
type Attachment struct {
	Kind string `json:"kind"`
	Data []byte `json:"data"`
}

// Request is the body for POST /api/send.
type Request struct {
	Sender       string          `json:"sender"`
	ChannelID    string          `json:"channel_id"`
	Frontend     string          `json:"frontend"`
	Email        string          `json:"email"`
	AccessToken  string          `json:"access_token,omitempty"`
	LanguageCode string          `json:"language_code,omitempty"`
	Content      string          `json:"content"`
	Attachment   *Attachment     `json:"attachment,omitempty"`
	ConfirmEvent json.RawMessage `json:"confirm_event,omitempty"`
}

// Conflict is an event the agent will only create after the user confirms.
type Conflict struct {
	EventData         json.RawMessage `json:"event_data"`
	ConflictingEvents json.RawMessage `json:"conflicting_events"`
	Message           string          `json:"message"`
}

// Response is the agent's answer to one turn.
type Response struct {
	Text     string
	Conflict *Conflict
}

// Agent runs one conversational turn.
type Agent interface {
	Run(ctx context.Context, req Request) (*Response, error)
}

// Client communicates with the agent HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an agent client. timeout <= 0 means no client-side limit.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Run sends the request and collects the streamed response.
func (c *Client) Run(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/send", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp)
	}

	var text strings.Builder
	out := &Response{}
	full, err := c.parseSSEStream(ctx, resp.Body, func(evt SSEEvent) {
		switch evt.Type {
		case EventText:
			var data TextEventData
			if json.Unmarshal([]byte(evt.Data), &data) == nil {
				text.WriteString(data.Text)
			}
		case EventConflict:
			var conflict Conflict
			if json.Unmarshal([]byte(evt.Data), &conflict) == nil {
				out.Conflict = &conflict
			}
		}
	})
	if err != nil {
		return nil, err
	}

	out.Text = full
	if out.Text == "" {
		out.Text = text.String()
	}
	if out.Conflict != nil && out.Conflict.Message != "" {
		out.Text = out.Conflict.Message
	}
	return out, nil
}

// handleErrorResponse extracts the error message from a non-200 response.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp ErrorEventData
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("agent error (%d): %s", resp.StatusCode, errResp.Error)
		}
	}
	return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(body))
}

// parseSSEStream reads SSE events and returns the done event's full response.
func (c *Client) parseSSEStream(ctx context.Context, body io.Reader, onEvent func(SSEEvent)) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var eventType EventType
	var dataLines []string
	var fullResponse string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return fullResponse, ctx.Err()
		default:
		}

		line := scanner.Text()

		// Empty line ends an event
		if line == "" {
			if eventType != "" && len(dataLines) > 0 {
				evt := SSEEvent{Type: eventType, Data: strings.Join(dataLines, "\n")}

				switch eventType {
				case EventDone:
					var data TextEventData
					if json.Unmarshal([]byte(evt.Data), &data) == nil {
						fullResponse = data.FullResponse
					}
				case EventError:
					var data ErrorEventData
					if json.Unmarshal([]byte(evt.Data), &data) == nil {
						return "", fmt.Errorf("agent error: %s", data.Error)
					}
				}

				if onEvent != nil {
					onEvent(evt)
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = EventType(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil {
		return fullResponse, fmt.Errorf("reading SSE stream: %w", err)
	}
	return fullResponse, nil
}
