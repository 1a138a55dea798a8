package domain

import "time"

// LifecycleState tracks a message from local creation to read acknowledgement.
type LifecycleState string

const (
	StatePending   LifecycleState = "pending"
	StateSent      LifecycleState = "sent"
	StateDelivered LifecycleState = "delivered"
	StateRead      LifecycleState = "read"
	StateFailed    LifecycleState = "failed"
)

// Origin says whether a message is still subject to reconciliation.
type Origin string

const (
	OriginOptimistic Origin = "optimistic"
	OriginCanonical  Origin = "canonical"
)

// Sender is a denormalized snapshot of the sending user at creation time,
// not a live reference.
type Sender struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Attachment describes a file carried by a message. URL may be a transient
// local reference until the upload completes and the server URL replaces it.
type Attachment struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

type Message struct {
	ID         string         `json:"id"`
	ChatID     string         `json:"chatId"`
	Sender     Sender         `json:"sender"`
	Content    string         `json:"content"`
	Attachment *Attachment    `json:"attachment,omitempty"`
	ReplyToID  string         `json:"replyToId,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	ServerSeq  int64          `json:"serverSeq,omitempty"`
	State      LifecycleState `json:"state"`
	Origin     Origin         `json:"origin"`
	// FailReason carries the send/upload error for this specific message so
	// the UI can offer a per-item retry. Never set on canonical messages.
	FailReason string `json:"failReason,omitempty"`
	// InsertSeq is assigned by the store on insertion and breaks timestamp
	// ties, keeping near-simultaneous messages in a stable display order
	// under clock skew.
	InsertSeq uint64 `json:"-"`
}

// IsLocal reports whether the message still carries a tracker-minted id.
func (m *Message) IsLocal() bool {
	return m.Origin == OriginOptimistic
}

func NewCanonicalMessage(id, chatID string, sender Sender, content string, timestamp time.Time) *Message {
	return &Message{
		ID:        id,
		ChatID:    chatID,
		Sender:    sender,
		Content:   content,
		Timestamp: timestamp,
		State:     StateDelivered,
		Origin:    OriginCanonical,
	}
}
