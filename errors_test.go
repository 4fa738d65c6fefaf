package eventsourcing

import (
	"errors"
	"testing"
)

func TestErrorStrings(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "DomainRejection",
			err:  &DomainRejection{Msg: "order already cancelled"},
			want: "domain rejection: order already cancelled",
		},
		{
			name: "StoreFailure",
			err:  &StoreFailure{Err: errors.New("connection reset")},
			want: "store failure: connection reset",
		},
		{
			name: "MalformedPayload",
			err:  &MalformedPayload{Schema: "urn:schema:jade:command:order:create:1", Err: errors.New("unexpected end of JSON input")},
			want: `malformed payload for schema "urn:schema:jade:command:order:create:1": unexpected end of JSON input`,
		},
		{
			name: "ExternalFailure",
			err:  &ExternalFailure{Err: errors.New("smtp timeout")},
			want: "external failure: smtp timeout",
		},
		{
			name: "PublishError",
			err:  &PublishError{Err: errors.New("queue unavailable")},
			want: "publish error: queue unavailable",
		},
		{
			name: "CorruptStream",
			err:  &CorruptStream{StreamID: "order-1", Cause: "panic: index out of range"},
			want: `corrupt stream "order-1": panic: index out of range`,
		},
		{
			name: "SkippedEvent",
			err:  &SkippedEvent{EventType: "urn:schema:jade:event:order:shipped:1"},
			want: "skipped event: urn:schema:jade:event:order:shipped:1",
		},
		{
			name: "NoHandlerError",
			err:  &NoHandlerError{TypeName: "order.ShipOrder"},
			want: "no handler registered: order.ShipOrder",
		},
		{
			name: "HandlerError",
			err:  &HandlerError{TypeName: "order.ShipOrder", Err: errors.New("boom")},
			want: "handler error for order.ShipOrder: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
	}{
		{"StoreFailure", &StoreFailure{Err: cause}},
		{"MalformedPayload", &MalformedPayload{Err: cause}},
		{"ExternalFailure", &ExternalFailure{Err: cause}},
		{"PublishError", &PublishError{Err: cause}},
		{"HandlerError", &HandlerError{Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, cause) {
				t.Errorf("expected %v to unwrap to %v", tt.err, cause)
			}
		})
	}
}

func TestSentinelErrorsDistinct(t *testing.T) {
	sentinels := []error{
		ErrBadCommand, ErrNotFound, ErrConcurrency, ErrUnknownSchema,
		ErrNoHandler, ErrMalformedURN, ErrInvalidPrefix, ErrEnvelopeInvalid,
		ErrSkippedEvent, ErrDuplicateHandler, ErrBusStopped,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}

func TestNoHandlerErrorUnwrapsToSentinel(t *testing.T) {
	err := &NoHandlerError{TypeName: "order.ShipOrder"}
	if !errors.Is(err, ErrNoHandler) {
		t.Errorf("expected %v to unwrap to ErrNoHandler", err)
	}
}

func TestSkippedEventUnwrapsToSentinel(t *testing.T) {
	err := &SkippedEvent{EventType: "urn:schema:jade:event:order:shipped:1"}
	if !errors.Is(err, ErrSkippedEvent) {
		t.Errorf("expected %v to unwrap to ErrSkippedEvent", err)
	}
}
