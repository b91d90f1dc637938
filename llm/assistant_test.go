package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	openai "github.com/sashabaranov/go-openai"
)

// mockChat implements ChatAPI for testing.
type mockChat struct {
	content  string
	err      error
	lastReq  openai.ChatCompletionRequest
	calls    int
	noChoice bool
}

func (m *mockChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if m.noChoice {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.content}},
		},
	}, nil
}

func TestClassifyMeetingIntent(t *testing.T) {
	mock := &mockChat{content: `{"is_meeting_request": true}`}
	a := NewWithClient(mock, "")

	ok, err := a.ClassifyMeetingIntent(context.Background(), "Test email content")
	be.Err(t, err, nil)
	be.True(t, ok)

	be.Equal(t, mock.lastReq.Model, DefaultModel)
	be.Equal(t, len(mock.lastReq.Messages), 2)
	be.Equal(t, mock.lastReq.Messages[1].Content, "Test email content")
	be.Equal(t, mock.lastReq.ResponseFormat.JSONSchema.Name, "IsMeetingRequest")
}

func TestClassifyMeetingIntent_Errors(t *testing.T) {
	_, err := NewWithClient(&mockChat{err: errors.New("timeout")}, "").ClassifyMeetingIntent(context.Background(), "x")
	be.Err(t, err, "timeout")

	_, err = NewWithClient(&mockChat{content: "maybe"}, "").ClassifyMeetingIntent(context.Background(), "x")
	be.Err(t, err, "decoding structured response")

	_, err = NewWithClient(&mockChat{noChoice: true}, "").ClassifyMeetingIntent(context.Background(), "x")
	be.Err(t, err, ErrEmptyResponse)
}

func TestExtractMeetingDetails(t *testing.T) {
	mock := &mockChat{content: `{
		"summary": "Test Meeting",
		"date": "2023-10-10",
		"start_time": "10:00:00",
		"duration": null,
		"timezone": null,
		"agenda": null,
		"location": null,
		"attendees": ["test@example.com"]
	}`}
	a := NewWithClient(mock, "gpt-test")

	d, err := a.ExtractMeetingDetails(context.Background(), "Test email content", "Recipient", "Tue, 10 Oct 2023")
	be.Err(t, err, nil)
	be.Equal(t, *d.Summary, "Test Meeting")
	be.Equal(t, *d.Date, "2023-10-10")
	be.True(t, d.Duration == nil)
	be.True(t, d.Timezone == nil)
	be.Equal(t, d.Attendees, []string{"test@example.com"})

	be.Equal(t, mock.lastReq.Messages[1].Content, "Email:\n\"Test email content\"")
	be.Equal(t, mock.lastReq.Model, "gpt-test")
	system := mock.lastReq.Messages[0].Content
	be.True(t, strings.Contains(system, "schedules meetings for Recipient"))
	be.True(t, strings.Contains(system, "sent on Tue, 10 Oct 2023"))
}

func TestExtractMeetingDetails_KeepsEmailText(t *testing.T) {
	mock := &mockChat{content: `{"attendees": []}`}
	a := NewWithClient(mock, "")

	text := "Subject: Sync\n\nSay \"hi\" to the team.\nThanks"
	_, err := a.ExtractMeetingDetails(context.Background(), text, "Recipient", "Tue, 10 Oct 2023")
	be.Err(t, err, nil)

	prompt := mock.lastReq.Messages[1].Content
	be.Equal(t, prompt, "Email:\n\""+text+"\"")
	be.True(t, !strings.Contains(prompt, `\n`))
	be.True(t, !strings.Contains(prompt, `\"`))
}

func TestComposeAvailabilityRequest(t *testing.T) {
	mock := &mockChat{content: "Please provide your availability."}
	a := NewWithClient(mock, "")

	body, err := a.ComposeAvailabilityRequest(context.Background(), "Test email content", "Recipient")
	be.Err(t, err, nil)
	be.Equal(t, body, "Please provide your availability.")
	be.True(t, mock.lastReq.ResponseFormat == nil)
	be.True(t, strings.Contains(mock.lastReq.Messages[0].Content, "Sign the message as Recipient"))
}

func TestAssistantOverHTTP(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  DefaultModel,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"is_meeting_request": false}`,
				},
			}},
		})
	}))
	defer srv.Close()

	a := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	ok, err := a.ClassifyMeetingIntent(context.Background(), "newsletter")
	be.Err(t, err, nil)
	be.True(t, !ok)
	be.Equal(t, gotPath, "/v1/chat/completions")
	be.Equal(t, gotAuth, "Bearer sk-test")
}
