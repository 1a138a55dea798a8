package optimistic

import (
	"errors"
	"strings"
	"testing"

	"github.com/essaydesk/chat-engine/internal/domain"
)

var self = domain.Sender{ID: "user-self", Name: "Self"}

func TestPrepare(t *testing.T) {
	t.Run("empty send yields nothing", func(t *testing.T) {
		tr := NewTracker(self)
		drafts, errs := tr.Prepare("chat-1", domain.SendInput{})
		if len(drafts) != 0 || len(errs) != 0 {
			t.Fatalf("got %d drafts, %d errors; want none", len(drafts), len(errs))
		}
	})

	t.Run("text only", func(t *testing.T) {
		tr := NewTracker(self)
		drafts, errs := tr.Prepare("chat-1", domain.SendInput{Content: "Hello"})
		if len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if len(drafts) != 1 {
			t.Fatalf("got %d drafts, want 1", len(drafts))
		}
		d := drafts[0]
		if d.Content != "Hello" || d.File != nil || d.ChatID != "chat-1" {
			t.Errorf("draft = %+v", d)
		}
		if !strings.HasPrefix(d.LocalID, "temp-text-") {
			t.Errorf("local id %q missing temp-text- prefix", d.LocalID)
		}
		if d.Sender.ID != self.ID {
			t.Errorf("sender = %s, want %s", d.Sender.ID, self.ID)
		}
	})

	t.Run("one draft per file sharing the caption", func(t *testing.T) {
		tr := NewTracker(self)
		input := domain.SendInput{
			Content: "see attached",
			Files: []domain.FileInput{
				{Name: "a.pdf", MimeType: "application/pdf", SizeBytes: 10},
				{Name: "b.png", MimeType: "image/png", SizeBytes: 20},
			},
		}
		drafts, errs := tr.Prepare("chat-1", input)
		if len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if len(drafts) != 2 {
			t.Fatalf("got %d drafts, want 2", len(drafts))
		}
		for _, d := range drafts {
			if d.Content != "see attached" {
				t.Errorf("caption not shared: %q", d.Content)
			}
			if d.File == nil {
				t.Error("file draft missing file")
			}
			if !strings.HasPrefix(d.LocalID, "temp-file-") {
				t.Errorf("local id %q missing temp-file- prefix", d.LocalID)
			}
		}
		if drafts[0].File.Name != "a.pdf" || drafts[1].File.Name != "b.png" {
			t.Errorf("files out of order: %s, %s", drafts[0].File.Name, drafts[1].File.Name)
		}
	})

	t.Run("malformed file skipped without blocking siblings", func(t *testing.T) {
		tr := NewTracker(self)
		input := domain.SendInput{
			Files: []domain.FileInput{
				{Name: "good.pdf", MimeType: "application/pdf"},
				{Name: "", MimeType: "image/png"},
				{Name: "nomime.bin", MimeType: ""},
			},
		}
		drafts, errs := tr.Prepare("chat-1", input)
		if len(drafts) != 1 {
			t.Fatalf("got %d drafts, want 1", len(drafts))
		}
		if len(errs) != 2 {
			t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
		}
		var verr *domain.ValidationError
		if !errors.As(errs[0], &verr) {
			t.Fatalf("error type %T, want *domain.ValidationError", errs[0])
		}
	})
}

func TestLocalIDUniqueness(t *testing.T) {
	tr := NewTracker(self)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		drafts, _ := tr.Prepare("chat-1", domain.SendInput{Content: "x"})
		id := drafts[0].LocalID
		if seen[id] {
			t.Fatalf("duplicate local id %s", id)
		}
		seen[id] = true
	}
}

func TestDraftMaterializesPending(t *testing.T) {
	tr := NewTracker(self)
	drafts, _ := tr.Prepare("chat-1", domain.SendInput{Content: "Hello"})
	m := drafts[0].Message()

	if m.ID != drafts[0].LocalID {
		t.Errorf("message id = %s, want local id %s", m.ID, drafts[0].LocalID)
	}
	if m.State != domain.StatePending {
		t.Errorf("state = %s, want pending", m.State)
	}
	if m.Origin != domain.OriginOptimistic {
		t.Errorf("origin = %s, want optimistic", m.Origin)
	}
}
