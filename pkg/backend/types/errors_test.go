package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	dialErr := errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "probe transport", err: Unreachable(0, dialErr), want: "backend is not responding: " + dialErr.Error()},
		{name: "probe status", err: Unreachable(503, nil), want: "backend is not responding (status 503)"},
		{name: "session status", err: SessionFailed(500, " boom \n"), want: "failed to create session: 500 - boom"},
		{name: "session malformed", err: MalformedSession("missing id"), want: "failed to create session: malformed response: missing id"},
		{name: "send status", err: SendFailed(502, "bad gateway"), want: "HTTP error! status: 502 - bad gateway"},
		{name: "empty", err: EmptyReply(), want: "empty response from server"},
		{name: "unrecognized", err: UnrecognizedReply("number"), want: "unexpected response format from server"},
		{name: "network", err: NetworkFailure("send", dialErr), want: "send failed: " + dialErr.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("exchange: %w", SendFailed(500, "boom"))

	assert.Equal(t, KindSendHTTPError, KindOf(wrapped))
	assert.Equal(t, 500, StatusOf(wrapped))
	assert.Equal(t, KindNetworkFailure, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Zero(t, StatusOf(errors.New("plain")))
}

func TestNetworkFailureUnwraps(t *testing.T) {
	cause := errors.New("timeout")
	err := NetworkFailure("probe", cause)

	assert.ErrorIs(t, err, cause)
}
