package parser

import (
	"errors"
	"fmt"
	"io"
	"mime"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// ErrNotAMessage is returned when the input does not resemble an RFC822
// message at all. Callers skip such records without inserting anything.
var ErrNotAMessage = errors.New("content does not resemble a message")

// Fallback layouts for Date headers without zone information; the instant
// is assumed to already be UTC.
var noZoneLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04",
	"2 Jan 2006 15:04:05",
	"2006-01-02 15:04:05",
}

// Parse parses one raw message blob into an Envelope. Header decoding and
// body extraction never abort the record: undecodable bytes are replaced
// with the Unicode substitution character and a missing or unparsable Date
// header leaves Envelope.Date nil. Only input that cannot be read as a
// message at all yields ErrNotAMessage.
func Parse(raw string) (*Envelope, error) {
	mr, err := mail.CreateReader(strings.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return parseHeadersOnly(raw)
	}
	if mr == nil {
		return parseHeadersOnly(raw)
	}

	env := envelopeFromHeaders(mr.Header.Get)
	env.Body = extractBody(mr)
	return env, nil
}

// envelopeFromHeaders fills the header fields of an Envelope from a raw
// header lookup function.
func envelopeFromHeaders(get func(string) string) *Envelope {
	return &Envelope{
		MessageID:  strings.TrimSpace(get("Message-Id")),
		From:       get("From"),
		To:         get("To"),
		Cc:         get("Cc"),
		Bcc:        get("Bcc"),
		Subject:    decodeHeader(get("Subject")),
		InReplyTo:  strings.TrimSpace(get("In-Reply-To")),
		References: strings.TrimSpace(get("References")),
		XFrom:      get("X-From"),
		XTo:        get("X-To"),
		XCc:        get("X-cc"),
		XBcc:       get("X-bcc"),
		Date:       parseSentDate(get("Date")),
	}
}

// extractBody walks the message parts and picks the body by ordered
// preference: the first non-attachment text/plain part, else the first
// non-attachment part of any type. Non-multipart messages surface as a
// single inline part, which covers the single-payload case.
func extractBody(mr *mail.Reader) string {
	var firstInline string
	haveInline := false

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Salvage whatever was readable so far.
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil && len(body) == 0 {
				continue
			}
			text := sanitizeText(string(body))
			if strings.HasPrefix(contentType, "text/plain") {
				return text
			}
			if !haveInline {
				firstInline = text
				haveInline = true
			}
		case *mail.AttachmentHeader:
			// Attachments never contribute to the body.
			_, _ = io.Copy(io.Discard, part.Body)
		}
	}

	return firstInline
}

// parseHeadersOnly is the lenient path for messages go-message refuses,
// typically because of a malformed Content-Type. The payload is taken
// verbatim as the body.
func parseHeadersOnly(raw string) (*Envelope, error) {
	msg, err := netmail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAMessage, err)
	}

	env := envelopeFromHeaders(msg.Header.Get)
	body, _ := io.ReadAll(msg.Body)
	env.Body = sanitizeText(string(body))
	return env, nil
}

// parseSentDate parses a Date header value, converts it to UTC and
// decomposes it. A value without zone information is assumed to already
// be UTC. Returns nil on any parse failure.
func parseSentDate(value string) *SentDate {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	t, err := netmail.ParseDate(value)
	if err != nil {
		for _, layout := range noZoneLayouts {
			if parsed, layoutErr := time.ParseInLocation(layout, value, time.UTC); layoutErr == nil {
				t, err = parsed, nil
				break
			}
		}
	}
	if err != nil {
		return nil
	}

	utc := t.UTC()
	return &SentDate{
		UTC:   utc.Format(time.RFC3339),
		Year:  utc.Year(),
		Month: int(utc.Month()),
		Day:   utc.Day(),
		Hour:  utc.Hour(),
	}
}

// decodeHeader decodes MIME encoded words (RFC 2047), returning the
// original value when decoding fails.
func decodeHeader(s string) string {
	dec := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// sanitizeText replaces invalid UTF-8 sequences with the substitution
// character so body text is always storable.
func sanitizeText(s string) string {
	return strings.ToValidUTF8(s, "�")
}
