package mailstate

import "github.com/nhle/relaymail/internal/model"

// Merger collapses repeated messages by identifier.
//
// For each key the last occurrence supplies the value, while the position
// is that of the first occurrence; unseen keys are appended in order.
// Messages without an identifier all share one key and therefore collapse
// into a single entry (the last one seen) unless KeepUnidentified is set.
// The wire format cannot tell an absent id from an empty one: both decode
// to "" and are treated as the same missing identifier.
type Merger struct {
	// KeepUnidentified gives every identifier-less message its own slot
	// instead of collapsing them together.
	KeepUnidentified bool
}

// mergeKey distinguishes identifier-less messages when slot is non-zero.
type mergeKey struct {
	id   string
	slot int
}

// Merge returns the deduplicated sequence. Merge(nil) returns an empty,
// non-nil slice.
func (m Merger) Merge(messages []model.Message) []model.Message {
	om := NewOrderedMap[mergeKey, model.Message]()
	for i, msg := range messages {
		k := mergeKey{id: msg.ID}
		if m.KeepUnidentified && !msg.HasID() {
			k.slot = i + 1
		}
		om.Set(k, msg)
	}
	return om.Values()
}

// Merge deduplicates with the default Merger.
func Merge(messages []model.Message) []model.Message {
	return Merger{}.Merge(messages)
}
