package chat

// Event is one inbound chat request. Target is only set for whispers and
// Channel only for channel messages.
type Event struct {
	Category Category
	Language Language
	Body     string
	Target   string
	Channel  string
}

// Message is a composed chat delivery handed to the session layer.
type Message struct {
	Category   Category `json:"category"`
	Language   Language `json:"language"`
	SenderID   PlayerID `json:"sender_id"`
	SenderName string   `json:"sender_name"`
	TargetID   PlayerID `json:"target_id,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	Body       string   `json:"body"`
	GameMaster bool     `json:"gm,omitempty"`
}

// NewMessage builds a message from sender in the given category and language.
func NewMessage(category Category, lang Language, sender Player, body string) Message {
	return Message{
		Category:   category,
		Language:   lang,
		SenderID:   sender.ID(),
		SenderName: sender.Name(),
		Body:       body,
		GameMaster: sender.IsGameMaster(),
	}
}

// Sink delivers composed messages. Delivery is fire-and-forget.
type Sink interface {
	Deliver(to PlayerID, msg Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(to PlayerID, msg Message)

// Deliver calls f(to, msg).
func (f SinkFunc) Deliver(to PlayerID, msg Message) { f(to, msg) }
