package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const basePath = "/gmail/v1/users/me/messages"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	be.Err(t, err, nil)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListUnread_AllPages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != basePath {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("labelIds"); got != "UNREAD" {
			t.Errorf("labelIds: got %q, want UNREAD", got)
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			writeJSON(w, gmail.ListMessagesResponse{
				Messages:      []*gmail.Message{{Id: "123"}, {Id: "456"}},
				NextPageToken: "p2",
			})
		case "p2":
			writeJSON(w, gmail.ListMessagesResponse{Messages: []*gmail.Message{{Id: "789"}}})
		}
	})

	ids, err := c.ListUnread(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, ids, []string{"123", "456", "789"})
}

func TestListUnread_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, gmail.ListMessagesResponse{})
	})
	ids, err := c.ListUnread(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, len(ids), 0)
}

func TestFetchHeadersAndRaw(t *testing.T) {
	raw := base64.URLEncoding.EncodeToString([]byte("Content-Type: text/plain\r\n\r\nhello"))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != basePath+"/123" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("format") {
		case "metadata":
			writeJSON(w, gmail.Message{Id: "123", Payload: &gmail.MessagePart{
				Headers: []*gmail.MessagePartHeader{
					{Name: "From", Value: "test@example.com"},
					{Name: "To", Value: "me@example.com"},
					{Name: "Subject", Value: "Test Subject"},
				},
			}})
		case "raw":
			writeJSON(w, gmail.Message{Id: "123", Raw: raw})
		default:
			t.Errorf("unexpected format %q", r.URL.Query().Get("format"))
		}
	})

	headers, err := c.FetchHeaders(context.Background(), "123")
	be.Err(t, err, nil)
	be.Equal(t, len(headers), 3)
	be.Equal(t, headers[0].Name, "From")
	be.Equal(t, headers[0].Value, "test@example.com")

	body, err := c.FetchRawBody(context.Background(), "123")
	be.Err(t, err, nil)
	be.Equal(t, body, raw)
}

func TestFetchHeaders_Error(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"bad id"}}`, http.StatusBadRequest)
	})
	_, err := c.FetchHeaders(context.Background(), "123")
	be.Err(t, err, "getting headers of message 123")
}

func TestMarkRead(t *testing.T) {
	var body gmail.ModifyMessageRequest
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, gmail.Message{Id: "test_id"})
	})

	err := c.MarkRead(context.Background(), "test_id")
	be.Err(t, err, nil)
	be.Equal(t, gotPath, basePath+"/test_id/modify")
	be.Equal(t, body.RemoveLabelIds, []string{"UNREAD"})
}

func TestSendMessage(t *testing.T) {
	var sent gmail.Message
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages/send") {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &sent)
		writeJSON(w, gmail.Message{Id: "sent-1"})
	})

	id, err := c.SendMessage(context.Background(), []byte("Subject: hi\r\n\r\nbody"))
	be.Err(t, err, nil)
	be.Equal(t, id, "sent-1")

	decoded, err := base64.URLEncoding.DecodeString(sent.Raw)
	be.Err(t, err, nil)
	be.Equal(t, string(decoded), "Subject: hi\r\n\r\nbody")
}
