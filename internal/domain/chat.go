package domain

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleWriter  Role = "writer"
	RoleSupport Role = "support"
)

// Participant is an immutable snapshot, refreshed only on re-fetch.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type Chat struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Participants   []Participant `json:"participants"`
	LastPreview    string        `json:"lastPreview,omitempty"`
	UnreadCount    int           `json:"unreadCount"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
}

// Participant returns the participant with the given user id, if present.
func (c *Chat) Participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.ID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// ChatSummary is a read-only projection derived from the message store,
// never separately mutated.
type ChatSummary struct {
	ChatID      string    `json:"chatId"`
	Preview     string    `json:"preview"`
	LastAt      time.Time `json:"lastAt"`
	UnreadCount int       `json:"unreadCount"`
	HasFailed   bool      `json:"hasFailed"`
}
