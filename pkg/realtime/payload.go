package realtime

import "strings"

const (
	guestPrefix = "guest."
	roomKey     = "__room"
	socketKey   = "__socketId"
	visitorRoom = "visitor:"
)

// Namespace groups connections by audience.
type Namespace string

const (
	NamespaceGuest Namespace = "guest"
	NamespaceAdmin Namespace = "admin"
)

// Payload is a notification for connected clients.
type Payload struct {
	EventName string         `json:"eventName"`
	Data      map[string]any `json:"payload"`
}

// Frame is the wire format exchanged with clients, both ways.
type Frame struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// ForAdmins builds a payload broadcast to every admin client.
func ForAdmins(name string, data map[string]any) Payload {
	return Payload{EventName: name, Data: copyData(data)}
}

// ForVisitor builds a payload for the sockets of one visitor.
// The name is moved to the guest namespace when needed.
func ForVisitor(visitorID, name string, data map[string]any) Payload {
	if !strings.HasPrefix(strings.ToLower(name), guestPrefix) {
		name = guestPrefix + name
	}
	d := copyData(data)
	d[roomKey] = RoomOfVisitor(visitorID)
	return Payload{EventName: name, Data: d}
}

// ForSocket builds a payload for a single connection.
func ForSocket(socketID, name string, data map[string]any) Payload {
	d := copyData(data)
	d[socketKey] = socketID
	return Payload{EventName: name, Data: d}
}

// Namespace returns the audience of the payload.
func (p Payload) Namespace() Namespace {
	if strings.HasPrefix(p.EventName, guestPrefix) {
		return NamespaceGuest
	}
	return NamespaceAdmin
}

// Target returns the socket id or room the payload is addressed to,
// or "" for a broadcast. A socket id wins over a room.
func (p Payload) Target() string {
	if id, ok := p.Data[socketKey].(string); ok && id != "" {
		return id
	}
	if room, ok := p.Data[roomKey].(string); ok && room != "" {
		return room
	}
	return ""
}

// RoomOfVisitor returns the room a visitor's sockets join.
func RoomOfVisitor(visitorID string) string {
	return visitorRoom + visitorID
}

// VisitorOfRoom is the inverse of RoomOfVisitor.
func VisitorOfRoom(room string) (string, bool) {
	id, ok := strings.CutPrefix(room, visitorRoom)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	return out
}
