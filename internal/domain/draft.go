package domain

import "time"

// FileInput is a file handed to the engine by the UI layer. Data holds the
// raw bytes to upload; LocalURL is a transient reference (e.g. a preview
// path) shown until the server URL is known.
type FileInput struct {
	Name      string
	MimeType  string
	SizeBytes int64
	Data      []byte
	LocalURL  string
}

// SendInput is one user send action. A multi-file send fans out into one
// draft per file, all sharing the caption.
type SendInput struct {
	Content   string
	Files     []FileInput
	ReplyToID string
}

// Draft is a provisional message plus everything needed to perform and,
// on failure, resubmit its network operation.
type Draft struct {
	LocalID   string
	ChatID    string
	Sender    Sender
	Content   string
	ReplyToID string
	File      *FileInput
	CreatedAt time.Time
}

// Message materializes the optimistic message record for this draft.
func (d *Draft) Message() *Message {
	m := &Message{
		ID:        d.LocalID,
		ChatID:    d.ChatID,
		Sender:    d.Sender,
		Content:   d.Content,
		ReplyToID: d.ReplyToID,
		Timestamp: d.CreatedAt,
		State:     StatePending,
		Origin:    OriginOptimistic,
	}
	if d.File != nil {
		m.Attachment = &Attachment{
			URL:       d.File.LocalURL,
			Name:      d.File.Name,
			MimeType:  d.File.MimeType,
			SizeBytes: d.File.SizeBytes,
		}
	}
	return m
}
