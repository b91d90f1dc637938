// Package llm wraps the language model calls the workflow depends on:
// meeting classification, meeting detail extraction and composing a reply
// that asks for availability.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bassamadnan/mailsched/meeting"
)

const DefaultModel = "gpt-4o-mini"

// ErrEmptyResponse is returned when the model answers with no choices or no content.
var ErrEmptyResponse = errors.New("empty response from language model")

// Config holds the settings for an Assistant.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for compatible endpoints and tests
}

// ChatAPI is the subset of the OpenAI client used here.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Assistant talks to the chat completion API.
type Assistant struct {
	client ChatAPI
	model  string
}

// New creates an Assistant from cfg.
func New(cfg Config) *Assistant {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewWithClient(openai.NewClientWithConfig(clientCfg), cfg.Model)
}

// NewWithClient creates an Assistant around an existing client.
func NewWithClient(client ChatAPI, model string) *Assistant {
	if model == "" {
		model = DefaultModel
	}
	return &Assistant{client: client, model: model}
}

// ClassifyMeetingIntent reports whether text contains a meeting request.
func (a *Assistant) ClassifyMeetingIntent(ctx context.Context, text string) (bool, error) {
	var c meeting.Classification
	err := a.parse(ctx, classificationFormat,
		"Analyze if the email contains a meeting request. Reply with True or False.",
		text, &c)
	if err != nil {
		return false, fmt.Errorf("classifying meeting intent: %w", err)
	}
	log.Info().Bool("is_meeting_request", c.IsMeetingRequest).Msg("LLM: checked if email contains a meeting request")
	return c.IsMeetingRequest, nil
}

// ExtractMeetingDetails pulls meeting fields out of text on behalf of
// actorName. referenceDate is the email's send date; relative dates in the
// email are resolved against it.
func (a *Assistant) ExtractMeetingDetails(ctx context.Context, text, actorName, referenceDate string) (*meeting.Details, error) {
	system := fmt.Sprintf("You are a helpful assistant that schedules meetings for %s. "+
		"Extract meeting details from the following email. This email was sent on %s. "+
		"Date and time details, if found, should be relative to %s. "+
		"Use YYYY-MM-DD for the date and HH:MM (24 hour) for the start time.",
		actorName, referenceDate, referenceDate)
	prompt := "Email:\n\"" + text + "\""

	var d meeting.Details
	if err := a.parse(ctx, detailsFormat, system, prompt, &d); err != nil {
		return nil, fmt.Errorf("extracting meeting details: %w", err)
	}
	log.Info().Msg("LLM: extracted meeting details from email")
	return &d, nil
}

// ComposeAvailabilityRequest writes the body of a reply asking the sender
// for available times, signed as actorName.
func (a *Assistant) ComposeAvailabilityRequest(ctx context.Context, text, actorName string) (string, error) {
	system := fmt.Sprintf("You are a helpful assistant that responds to emails for %s. "+
		"Write a response to the following email. Respond with just the body of the email. "+
		"Do not include headers. Sign the message as %s", actorName, actorName)
	prompt := "This email contains details about a meeting request, but is missing some details " +
		"such as the date and time. Write a response to ask for available times.\n\nEmail:\n" + text

	content, err := a.complete(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages(system, prompt),
	})
	if err != nil {
		return "", fmt.Errorf("composing availability email: %w", err)
	}
	log.Info().Msg("LLM: composed availability email")
	return content, nil
}

// parse runs a structured-output completion and decodes the JSON answer into out.
func (a *Assistant) parse(ctx context.Context, format *openai.ChatCompletionResponseFormat, system, user string, out any) error {
	content, err := a.complete(ctx, openai.ChatCompletionRequest{
		Model:          a.model,
		Messages:       messages(system, user),
		ResponseFormat: format,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decoding structured response: %w", err)
	}
	return nil
}

func (a *Assistant) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func messages(system, user string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
}
