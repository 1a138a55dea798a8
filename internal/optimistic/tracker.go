// Package optimistic turns user send actions into provisional drafts shown
// before the network confirms them, and mints the local ids used to
// correlate each draft with its eventual canonical message.
package optimistic

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/essaydesk/chat-engine/internal/domain"
)

type Tracker struct {
	self    domain.Sender
	counter atomic.Uint64
}

func NewTracker(self domain.Sender) *Tracker {
	return &Tracker{self: self}
}

// Prepare fans one send action out into drafts: one per attachment (sharing
// the caption), or a single text draft when no files are attached. An empty
// send yields no drafts. A malformed file is skipped and reported as a
// validation error without blocking its siblings.
func (t *Tracker) Prepare(chatID string, input domain.SendInput) ([]*domain.Draft, []error) {
	if input.Content == "" && len(input.Files) == 0 {
		return nil, nil
	}

	now := time.Now()

	if len(input.Files) == 0 {
		return []*domain.Draft{t.newDraft(chatID, "text", input.Content, input.ReplyToID, nil, now)}, nil
	}

	var drafts []*domain.Draft
	var errs []error
	for i := range input.Files {
		f := input.Files[i]
		if err := validateFile(f); err != nil {
			errs = append(errs, err)
			continue
		}
		drafts = append(drafts, t.newDraft(chatID, "file", input.Content, input.ReplyToID, &f, now))
	}
	return drafts, errs
}

func (t *Tracker) newDraft(chatID, kind, content, replyTo string, file *domain.FileInput, now time.Time) *domain.Draft {
	return &domain.Draft{
		LocalID:   t.nextLocalID(kind, now),
		ChatID:    chatID,
		Sender:    t.self,
		Content:   content,
		ReplyToID: replyTo,
		File:      file,
		CreatedAt: now,
	}
}

// nextLocalID combines a monotonic counter with a random disambiguator so
// rapid repeated sends within the same millisecond still get unique ids.
func (t *Tracker) nextLocalID(kind string, now time.Time) string {
	n := t.counter.Add(1)
	return fmt.Sprintf("temp-%s-%d-%d-%s", kind, now.UnixMilli(), n, uuid.NewString()[:8])
}

func validateFile(f domain.FileInput) error {
	if f.Name == "" {
		return &domain.ValidationError{Field: "file.name", Reason: "is required"}
	}
	if f.MimeType == "" {
		return &domain.ValidationError{Field: "file.mimeType", Reason: "is required"}
	}
	return nil
}
