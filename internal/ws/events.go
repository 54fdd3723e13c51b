package ws

type EventType string

// Server→client events. Clients never send domain events over the socket;
// sending goes through REST and the socket carries pushes only.
const (
	EventNewMessage      EventType = "newMessage"
	EventNewNotification EventType = "newNotification"
	EventOnlineUsers     EventType = "getOnlineUsers"
)

// Event is one server push frame.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}
