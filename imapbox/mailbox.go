// Package imapbox is the mailbox backend for plain IMAP accounts. Replies go
// out through a Sender, since IMAP has no send operation.
package imapbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/rs/zerolog/log"

	"github.com/bassamadnan/mailsched/message"
)

const inbox = "INBOX"

// Config holds the IMAP account settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool // implicit TLS; otherwise STARTTLS
}

// Sender delivers an already encoded RFC 5322 message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, raw []byte) (string, error)
	Name() string
}

// Mailbox implements the mailbox operations over IMAP. Message ids are
// decimal UIDs in INBOX. Every call opens its own session.
type Mailbox struct {
	cfg    Config
	sender Sender
	dial   func(addr string) (*imapclient.Client, error)
}

// NewMailbox creates a Mailbox that sends replies through sender.
func NewMailbox(cfg Config, sender Sender) *Mailbox {
	m := &Mailbox{cfg: cfg, sender: sender}
	if cfg.TLS {
		m.dial = func(addr string) (*imapclient.Client, error) { return imapclient.DialTLS(addr, nil) }
	} else {
		m.dial = func(addr string) (*imapclient.Client, error) { return imapclient.DialStartTLS(addr, nil) }
	}
	return m
}

func (m *Mailbox) Name() string { return "imap" }

// connect logs in and selects INBOX. The caller logs out.
func (m *Mailbox) connect(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	client, err := m.dial(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	if err := client.Login(m.cfg.Username, m.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", m.cfg.Username, err)
	}
	if _, err := client.Select(inbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}
	return client, nil
}

func logout(client *imapclient.Client) {
	if err := client.Logout().Wait(); err != nil {
		log.Debug().Err(err).Msg("IMAP: logout failed")
	}
}

// ListUnread returns the UIDs of every message without the \Seen flag.
func (m *Mailbox) ListUnread(ctx context.Context) ([]string, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer logout(client)

	data, err := client.UIDSearch(&imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unread messages: %w", err)
	}
	uids := data.AllUIDs()
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	log.Info().Int("count", len(ids)).Msg("IMAP: listed unread messages")
	return ids, nil
}

// FetchHeaders returns the decoded header fields of a message in order.
func (m *Mailbox) FetchHeaders(ctx context.Context, id string) ([]message.Header, error) {
	section := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierHeader, Peek: true}
	raw, err := m.fetchSection(ctx, id, section)
	if err != nil {
		return nil, fmt.Errorf("getting headers of message %s: %w", id, err)
	}
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("parsing headers of message %s: %w", id, err)
	}
	return headerList(gomessage.Header{Header: h}), nil
}

// FetchRawBody returns the full message, base64url encoded like the Gmail raw format.
func (m *Mailbox) FetchRawBody(ctx context.Context, id string) (string, error) {
	raw, err := m.fetchSection(ctx, id, &imap.FetchItemBodySection{Peek: true})
	if err != nil {
		return "", fmt.Errorf("getting raw message %s: %w", id, err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

func (m *Mailbox) fetchSection(ctx context.Context, id string, section *imap.FetchItemBodySection) ([]byte, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer logout(client)

	msgs, err := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}
	raw := msgs[0].FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body section", uid)
	}
	return raw, nil
}

// MarkRead adds the \Seen flag.
func (m *Mailbox) MarkRead(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer logout(client)

	err = client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("marking message %s as read: %w", id, err)
	}
	log.Info().Str("msg_id", id).Msg("IMAP: marked message as read")
	return nil
}

// SendMessage hands raw to the Sender, taking the envelope from its headers.
func (m *Mailbox) SendMessage(ctx context.Context, raw []byte) (string, error) {
	from, to, err := envelope(raw)
	if err != nil {
		return "", err
	}
	id, err := m.sender.Send(ctx, from, to, raw)
	if err != nil {
		return "", fmt.Errorf("sending via %s: %w", m.sender.Name(), err)
	}
	return id, nil
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid message id %q", id)
	}
	return imap.UID(n), nil
}

func headerList(h gomessage.Header) []message.Header {
	var out []message.Header
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out = append(out, message.Header{Name: fields.Key(), Value: value})
	}
	return out
}

// envelope returns the bare From address and every To/Cc recipient.
func envelope(raw []byte) (string, []string, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return "", nil, fmt.Errorf("parsing outgoing headers: %w", err)
	}
	mh := mail.Header{Header: gomessage.Header{Header: h}}

	var from string
	if addrs, err := mh.AddressList("From"); err == nil && len(addrs) > 0 {
		from = addrs[0].Address
	}
	var to []string
	for _, key := range []string{"To", "Cc"} {
		addrs, err := mh.AddressList(key)
		if err != nil {
			to = append(to, message.Addresses(mh.Get(key))...)
			continue
		}
		for _, a := range addrs {
			to = append(to, a.Address)
		}
	}
	if len(to) == 0 {
		return "", nil, fmt.Errorf("outgoing message has no recipients")
	}
	return from, to, nil
}
