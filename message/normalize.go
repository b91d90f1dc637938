package message

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/rs/zerolog/log"
)

// Normalize builds an Email from a mailbox message's header list and its raw
// base64url transport payload. It never fails: a payload that cannot be
// decoded yields an empty body so the caller can keep going.
func Normalize(id string, headers []Header, raw string) *Email {
	return &Email{
		ID:      id,
		Headers: HeaderMap(headers),
		Body:    ExtractBody(raw),
	}
}

// ExtractBody decodes a base64url RFC 5322 message and returns its plain
// text body. For multipart messages the first text/plain part (depth first,
// in original order) wins and everything else, HTML alternatives included, is
// ignored. A single-part message contributes its payload only when it is
// itself text/plain.
func ExtractBody(raw string) string {
	data, err := decodeBase64URL(raw)
	if err != nil {
		log.Error().Err(err).Msg("Normalizer: error decoding message payload")
		return ""
	}

	entity, err := gomessage.Read(bytes.NewReader(data))
	if entity == nil {
		log.Error().Err(err).Msg("Normalizer: error parsing message")
		return ""
	}
	body, _ := plainText(entity, err)
	return body
}

// plainText walks entity and reports the first text/plain payload. found is
// true once a text/plain part has been reached, even if decoding it failed;
// the scan stops there either way.
func plainText(entity *gomessage.Entity, entityErr error) (body string, found bool) {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", false
			}
			if part == nil {
				log.Error().Err(err).Msg("Normalizer: error reading multipart message")
				return "", false
			}
			if body, found := plainText(part, err); found {
				return body, true
			}
		}
	}

	if contentType(entity) != "text/plain" {
		return "", false
	}
	if entityErr != nil {
		log.Error().Err(entityErr).Msg("Normalizer: error decoding text/plain part")
		return "", true
	}
	b, err := io.ReadAll(entity.Body)
	if err != nil {
		log.Error().Err(err).Msg("Normalizer: error reading text/plain part")
		return "", true
	}
	return string(b), true
}

// contentType returns the entity's media type, defaulting to text/plain
// when the header is missing.
func contentType(entity *gomessage.Entity) string {
	if entity.Header.Get("Content-Type") == "" {
		return "text/plain"
	}
	mediaType, _, err := entity.Header.ContentType()
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}

func decodeBase64URL(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	data, err := base64.URLEncoding.DecodeString(raw)
	if err == nil {
		return data, nil
	}
	if data, rawErr := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "=")); rawErr == nil {
		return data, nil
	}
	return nil, err
}
