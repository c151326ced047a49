// Package ingest derives tasks from email messages.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"net/mail"

	"remindsync/internal/engine"
)

// maxSnippetLines bounds how much of the body lands in the task notes.
const maxSnippetLines = 5

// Parse reads an RFC 822 message and derives a task: subject becomes the
// title, the first body lines become the notes, and the sender/subject
// pair is carried as provenance so the engine can tag the external item.
// A natural-language due date found in the subject or body is attached.
func Parse(r io.Reader, now time.Time) (engine.Task, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return engine.Task{}, fmt.Errorf("failed to parse message: %w", err)
	}

	subject := strings.TrimSpace(msg.Header.Get("Subject"))
	if subject == "" {
		return engine.Task{}, fmt.Errorf("message has no subject")
	}

	sender := msg.Header.Get("From")
	if addr, err := mail.ParseAddress(sender); err == nil {
		sender = addr.Address
	}

	snippet := readSnippet(msg.Body)

	t := engine.Task{
		Title:  subject,
		Notes:  snippet,
		Origin: engine.OriginEmail,
		OriginMeta: &engine.OriginMeta{
			Sender:  sender,
			Subject: subject,
		},
	}

	if due := findDue(subject, snippet, now); due != nil {
		t.DueAt = due
	}
	return t, nil
}

// readSnippet collects the first non-empty body lines.
func readSnippet(body io.Reader) string {
	scanner := bufio.NewScanner(body)
	var lines []string
	for scanner.Scan() && len(lines) < maxSnippetLines {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if len(lines) > 0 {
				break // stop at the first paragraph
			}
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// findDue looks for a natural-language date, subject first.
func findDue(subject, body string, now time.Time) *time.Time {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	for _, text := range []string{subject, body} {
		if text == "" {
			continue
		}
		result, err := w.Parse(text, now)
		if err != nil || result == nil {
			continue
		}
		due := result.Time
		return &due
	}
	return nil
}
