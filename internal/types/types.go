// Package types defines the wire payloads exchanged with the gochat
// service, both over REST and over the STOMP channel. Field names and
// json tags match the server's schema exactly.
package types

type User struct {
	UserId string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

type ChatRoom struct {
	ChatRoomId     string `json:"chatroomId"`
	Participant1Id string `json:"participant1Id,omitempty"`
	Participant2Id string `json:"participant2Id,omitempty"`
}

// Message is the envelope published to /pub/chat/{roomId} and delivered
// on /sub/chat/{roomId}. Timestamp is set by the server and is empty on
// outbound envelopes.
type Message struct {
	Message    string `json:"message"`
	SenderId   string `json:"senderId"`
	ReceiverId string `json:"receiverId"`
	ChatRoomId string `json:"chatRoomId"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type LoginRequest struct {
	UserId   string `json:"userId"`
	Password string `json:"password"`
}

type SignupRequest struct {
	UserId       string `json:"userId"`
	UserPassword string `json:"userPassword"`
	UserName     string `json:"userName"`
	Email        string `json:"email"`
}

type CreateChatRoomRequest struct {
	Participant1Id string `json:"participant1Id"`
	Participant2Id string `json:"participant2Id"`
}

// PresenceSnapshot is the body of every /sub/users push: the complete
// list of currently connected user ids, not a delta.
type PresenceSnapshot []string
