package model

// Endpoint selects one of the relay's mail collections.
type Endpoint string

const (
	EndpointUnread   Endpoint = "unread"
	EndpointReceived Endpoint = "received"
	EndpointSent     Endpoint = "sent"
	EndpointRefresh  Endpoint = "refresh"
)

var endpointPaths = map[Endpoint]string{
	EndpointUnread:   "/emails",
	EndpointReceived: "/emails/receive",
	EndpointSent:     "/emails/sent",
	EndpointRefresh:  "/emails/refresh",
}

// Path returns the HTTP path for the endpoint, or "" if it is unknown.
func (e Endpoint) Path() string {
	return endpointPaths[e]
}

// Title is the human-readable collection name.
func (e Endpoint) Title() string {
	switch e {
	case EndpointUnread:
		return "Unread"
	case EndpointReceived:
		return "Received"
	case EndpointSent:
		return "Sent"
	case EndpointRefresh:
		return "Refreshed"
	default:
		return string(e)
	}
}
