package mailstate

import "github.com/nhle/relaymail/internal/model"

// Selection holds the one message open in the detail view, shared by every
// list. Selecting replaces; there is no stack. It is not safe for
// concurrent use and is meant to live on the UI update loop.
type Selection struct {
	current model.Message
	open    bool
}

// Select opens a copy of msg, replacing any open message.
func (s *Selection) Select(msg model.Message) {
	s.current = msg
	s.open = true
}

// Dismiss closes the open message.
func (s *Selection) Dismiss() {
	s.current = model.Message{}
	s.open = false
}

// Current returns the open message, if any.
func (s *Selection) Current() (model.Message, bool) {
	return s.current, s.open
}

// IsOpen reports whether a message is open.
func (s *Selection) IsOpen() bool {
	return s.open
}
