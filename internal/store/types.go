package store

// Direction indicates whether a message was received or sent.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Account represents a business account. The core only reads accounts;
// provisioning and credentials live server-side.
type Account struct {
	ID     string
	Name   string
	Active bool
}

// Conversation is the summary record kept by the ConversationIndex.
type Conversation struct {
	ID                 string
	AccountID          string
	Name               string
	PhoneNumber        string
	LastMessageAt      int64
	LastMessagePreview string
	UnreadCount        int
}

// DisplayName returns the contact name, falling back to the phone number.
func (c *Conversation) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.PhoneNumber
}

// Message is a single chat message within a conversation.
type Message struct {
	ID             string
	ConversationID string
	Direction      Direction
	MessageType    string
	Body           string
	Timestamp      int64
	Status         Status
	ErrorMessage   string
}

// SummaryPatch carries the subset of Conversation fields to merge.
// Nil fields are left untouched.
type SummaryPatch struct {
	AccountID          *string
	Name               *string
	PhoneNumber        *string
	LastMessageAt      *int64
	LastMessagePreview *string
	UnreadCount        *int
}
