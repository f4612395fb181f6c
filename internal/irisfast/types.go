package irisfast

// Message is one chat event pushed by Iris over the WebSocket.
type Message struct {
	Msg    string       `json:"msg"`
	Room   string       `json:"room"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

type MessageJSON struct {
	UserID  string `json:"user_id,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}

// SenderName is the display name, falling back to the user id.
func (m *Message) SenderName() string {
	if m == nil {
		return ""
	}
	if m.Sender != nil && *m.Sender != "" {
		return *m.Sender
	}
	if m.JSON != nil {
		return m.JSON.UserID
	}
	return ""
}

// UserID is the stable Kakao user id when Iris provides one, else the
// display name.
func (m *Message) UserID() string {
	if m == nil {
		return ""
	}
	if m.JSON != nil && m.JSON.UserID != "" {
		return m.JSON.UserID
	}
	if m.Sender != nil {
		return *m.Sender
	}
	return ""
}

type Config struct {
	Port              int    `json:"port"`
	PollingSpeed      int    `json:"polling_speed"`
	MessageRate       int    `json:"message_rate"`
	WebserverEndpoint string `json:"web_server_endpoint"`
}

// ReplyRequest is the /reply body. Type is "text" or "image"; an image
// carries a base64 PNG in Data.
type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)

func (s WebSocketState) String() string { return string(s) }
