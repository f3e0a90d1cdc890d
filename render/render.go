// Package render builds chat messages once and renders them either as
// Telegram MarkdownV2 or as plain text carrying the same content.
package render

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrInvalidMarkup means the rich rendering would not parse as MarkdownV2.
var ErrInvalidMarkup = errors.New("invalid MarkdownV2")

type span struct {
	text string
	bold bool
}

// Message is an ordered list of text spans, some of them bold.
type Message struct {
	spans []span
}

func New() *Message {
	return &Message{}
}

// Text appends literal text. Reserved characters are escaped on rich output.
func (m *Message) Text(s string) *Message {
	m.spans = append(m.spans, span{text: s})
	return m
}

func (m *Message) Bold(s string) *Message {
	m.spans = append(m.spans, span{text: s, bold: true})
	return m
}

// Line appends text followed by a newline.
func (m *Message) Line(s string) *Message {
	return m.Text(s + "\n")
}

// Field appends "prefix<label><sep>value\n" with the label in bold.
func (m *Message) Field(prefix, label, sep, value string) *Message {
	if prefix != "" {
		m.Text(prefix)
	}
	return m.Bold(label).Text(sep + value + "\n")
}

// Plain renders the message without any markup.
func (m *Message) Plain() string {
	var b strings.Builder
	for _, s := range m.spans {
		b.WriteString(s.text)
	}
	return b.String()
}

// Rich renders MarkdownV2 and checks that the result parses.
func (m *Message) Rich() (string, error) {
	var b strings.Builder
	for _, s := range m.spans {
		if s.text == "" {
			continue
		}
		esc := Escape(s.text)
		if s.bold {
			b.WriteString("*" + esc + "*")
		} else {
			b.WriteString(esc)
		}
	}
	out := b.String()
	if err := Validate(out); err != nil {
		return "", err
	}
	return out, nil
}

// Escape makes arbitrary text safe inside a MarkdownV2 message.
func Escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, strings.ReplaceAll(s, `\`, `\\`))
}

const reserved = "_*[]()~`>#+-=|{}.!"

// Validate accepts the MarkdownV2 subset this package produces: escaped
// characters and balanced bold markers.
func Validate(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidMarkup)
	}
	bold := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			if i+1 >= len(s) || s[i+1] < 1 || s[i+1] > 126 {
				return fmt.Errorf("%w: dangling escape at byte %d", ErrInvalidMarkup, i)
			}
			i++
		case c == '*':
			bold = !bold
		case strings.IndexByte(reserved, c) >= 0:
			return fmt.Errorf("%w: unescaped %q at byte %d", ErrInvalidMarkup, c, i)
		}
	}
	if bold {
		return fmt.Errorf("%w: unterminated bold", ErrInvalidMarkup)
	}
	return nil
}
