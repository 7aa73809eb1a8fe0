package relay

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"foreign", errors.New("x"), KindUnknown},
		{"transport", &TransportError{Op: "fetch", Err: errors.New("dial")}, KindTransport},
		{"wrapped transport", fmt.Errorf("outer: %w", &TransportError{Op: "fetch", Err: errors.New("dial")}), KindTransport},
		{"rejected", &RejectedError{Op: "send"}, KindRejected},
		{"precondition", &PreconditionError{Reason: "no file"}, KindPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "send: rejected by server", (&RejectedError{Op: "send"}).Error())
	assert.Equal(t, "send: rejected by server: nope", (&RejectedError{Op: "send", Message: "nope"}).Error())
	assert.Equal(t, "fetch: status 502: bad", (&TransportError{Op: "fetch", Status: 502, Err: errors.New("bad")}).Error())
}
