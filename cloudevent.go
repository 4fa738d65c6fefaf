package eventsourcing

import (
	"context"
	"encoding/json"
	"fmt"
)

// CloudEvent is the JSON wire shape of a CloudEvents v1.0 structured-mode
// event, shared by the synchronous HTTP ingress and the queue so a command
// round-trips through either path as the same envelope. DataSchema carries
// the command schema URN; Data carries the command payload. The
// jade-prefixed extension attributes carry correlation, causation and user
// identifiers the way any CloudEvents producer models its own extension
// attributes — top-level, lowercase, no separators.
type CloudEvent struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	SpecVersion     string          `json:"specversion"`
	Type            string          `json:"type"`
	DataSchema      string          `json:"dataschema"`
	Subject         string          `json:"subject,omitempty"`
	Time            string          `json:"time,omitempty"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`

	JadeCorrelationID string `json:"jadecorrelationid,omitempty"`
	JadeCausationID   string `json:"jadecausationid,omitempty"`
	JadeUserID        string `json:"jadeuserid,omitempty"`
}

// ValidateCloudEvent checks the envelope fields both the synchronous and
// queued ingress modes require before a schema is even resolved.
func ValidateCloudEvent(ce CloudEvent) error {
	if ce.SpecVersion != "1.0" {
		return fmt.Errorf("%w: specversion must be \"1.0\", got %q", ErrEnvelopeInvalid, ce.SpecVersion)
	}
	if ce.ID == "" {
		return fmt.Errorf("%w: id is required", ErrEnvelopeInvalid)
	}
	if ce.Source == "" {
		return fmt.Errorf("%w: source is required", ErrEnvelopeInvalid)
	}
	if ce.Type == "" {
		return fmt.Errorf("%w: type is required", ErrEnvelopeInvalid)
	}
	return nil
}

// DispatchCloudEvent resolves ce's command through registry, unmarshals its
// data, and dispatches it through bus. It is the one decode-and-dispatch
// procedure shared by the direct HTTP ingress and the queue receiver, so a
// command takes the same path into the bus regardless of how it arrived.
func DispatchCloudEvent(ctx context.Context, registry *Registry, bus *CommandBus, ce CloudEvent) (AppendResult, error) {
	if ce.DataSchema == "" {
		return AppendResult{}, fmt.Errorf("%w: dataschema is required", ErrEnvelopeInvalid)
	}
	if len(ce.Data) == 0 {
		return AppendResult{}, fmt.Errorf("%w: data is required", ErrEnvelopeInvalid)
	}

	cmd, _, err := registry.DeserializeCommand(ce.DataSchema, ce.Data)
	if err != nil {
		return AppendResult{}, err
	}

	ctx = WithMetadata(ctx, NewMetadata(ce.JadeCorrelationID, ce.JadeCausationID, ce.JadeUserID))
	return bus.Dispatch(ctx, cmd)
}
