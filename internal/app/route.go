package app

import "strings"

// Route names mirror the service's navigation surface: the entry view
// at /, the protected directory at /main and the protected chat
// session at /test/{receiverId}.
const (
	RouteLogin    = "login"
	RouteMain     = "main"
	RouteChat     = "chat"
	RouteNotFound = "not-found"
)

type Route struct {
	Name       string
	ReceiverId string
}

func ParseRoute(path string) Route {
	switch {
	case path == "/":
		return Route{Name: RouteLogin}
	case path == "/main":
		return Route{Name: RouteMain}
	case strings.HasPrefix(path, "/test/"):
		receiver := strings.TrimPrefix(path, "/test/")
		if receiver == "" || strings.Contains(receiver, "/") {
			return Route{Name: RouteNotFound}
		}
		return Route{Name: RouteChat, ReceiverId: receiver}
	default:
		return Route{Name: RouteNotFound}
	}
}

// ChatPath builds the navigation path for a chat with receiverID.
func ChatPath(receiverID string) string {
	return "/test/" + receiverID
}
