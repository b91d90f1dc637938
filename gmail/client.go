// Package gmail implements the mailbox used by the workflow on top of the
// Gmail REST API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/bassamadnan/mailsched/message"
)

const (
	user        = "me"
	labelUnread = "UNREAD"
)

// Scopes are the Gmail OAuth scopes the mailbox needs.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailModifyScope,
}

type Client struct {
	srv *gmail.Service
}

// NewClient creates a Gmail mailbox. Pass option.WithHTTPClient with an
// authorized client; tests also pass option.WithEndpoint.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Client{srv: srv}, nil
}

// Name identifies the backend in logs.
func (c *Client) Name() string { return "gmail" }

// ListUnread returns the ids of every message carrying the UNREAD label.
func (c *Client) ListUnread(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.srv.Users.Messages.List(user).LabelIds(labelUnread).Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		for _, m := range page.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing unread messages: %w", err)
	}
	log.Debug().Int("count", len(ids)).Msg("Gmail: listed unread messages")
	return ids, nil
}

// FetchHeaders returns the message's headers in their original order.
func (c *Client) FetchHeaders(ctx context.Context, id string) ([]message.Header, error) {
	msg, err := c.srv.Users.Messages.Get(user, id).Format("metadata").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting headers of message %s: %w", id, err)
	}
	if msg.Payload == nil {
		return nil, nil
	}
	headers := make([]message.Header, 0, len(msg.Payload.Headers))
	for _, h := range msg.Payload.Headers {
		headers = append(headers, message.Header{Name: h.Name, Value: h.Value})
	}
	return headers, nil
}

// FetchRawBody returns the base64url encoded RFC 5322 message.
func (c *Client) FetchRawBody(ctx context.Context, id string) (string, error) {
	msg, err := c.srv.Users.Messages.Get(user, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("getting raw body of message %s: %w", id, err)
	}
	return msg.Raw, nil
}

// MarkRead removes the UNREAD label.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	_, err := c.srv.Users.Messages.Modify(user, id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{labelUnread},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("marking message %s as read: %w", id, err)
	}
	log.Info().Str("msg_id", id).Msg("Gmail: marked email as read")
	return nil
}

// SendMessage sends a serialized RFC 5322 message and returns its new id.
func (c *Client) SendMessage(ctx context.Context, raw []byte) (string, error) {
	sent, err := c.srv.Users.Messages.Send(user, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}
	log.Info().Str("sent_id", sent.Id).Msg("Gmail: sent email")
	return sent.Id, nil
}
