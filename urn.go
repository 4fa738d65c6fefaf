package eventsourcing

import (
	"fmt"
	"regexp"
	"strings"
)

// SchemaKind distinguishes a command schema URN from an event schema URN.
type SchemaKind string

const (
	SchemaKindCommand SchemaKind = "command"
	SchemaKindEvent   SchemaKind = "event"
)

// Schema is a parsed urn:schema:jade:{kind}:{aggregate}:{action}:{version} URN.
//
// The grammar is bit-exact and case-sensitive:
//
//	urn:schema:jade:(command|event):{aggregate}:{action}:{version}
//
// where {aggregate} and {action} match [a-z][a-z0-9-]* and {version}
// matches [1-9][0-9]*.
type Schema struct {
	Kind      SchemaKind
	Aggregate string
	Action    string
	Version   string
	raw       string
}

var (
	segmentPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	versionPattern = regexp.MustCompile(`^[1-9][0-9]*$`)
)

// String returns the canonical URN string.
func (s Schema) String() string {
	if s.raw != "" {
		return s.raw
	}
	return fmt.Sprintf("urn:schema:jade:%s:%s:%s:%s", s.Kind, s.Aggregate, s.Action, s.Version)
}

// ParseSchema validates and parses a schema URN. It returns ErrMalformedURN
// if the grammar does not match exactly.
func ParseSchema(urn string) (Schema, error) {
	segments := strings.Split(urn, ":")
	if len(segments) != 7 {
		return Schema{}, fmt.Errorf("%w: %q: expected 7 colon-separated segments, got %d", ErrMalformedURN, urn, len(segments))
	}

	if segments[0] != "urn" || segments[1] != "schema" || segments[2] != "jade" {
		return Schema{}, fmt.Errorf("%w: %q: must start with urn:schema:jade:", ErrMalformedURN, urn)
	}

	kind := SchemaKind(segments[3])
	if kind != SchemaKindCommand && kind != SchemaKindEvent {
		return Schema{}, fmt.Errorf("%w: %q: kind must be command or event, got %q", ErrMalformedURN, urn, segments[3])
	}

	aggregate, action, version := segments[4], segments[5], segments[6]
	if !segmentPattern.MatchString(aggregate) {
		return Schema{}, fmt.Errorf("%w: %q: invalid aggregate segment %q", ErrMalformedURN, urn, aggregate)
	}
	if !segmentPattern.MatchString(action) {
		return Schema{}, fmt.Errorf("%w: %q: invalid action segment %q", ErrMalformedURN, urn, action)
	}
	if !versionPattern.MatchString(version) {
		return Schema{}, fmt.Errorf("%w: %q: invalid version segment %q", ErrMalformedURN, urn, version)
	}

	return Schema{Kind: kind, Aggregate: aggregate, Action: action, Version: version, raw: urn}, nil
}

// CommandSchema builds and validates a command schema URN from its parts.
func CommandSchema(aggregate, action, version string) Schema {
	s, err := ParseSchema(fmt.Sprintf("urn:schema:jade:command:%s:%s:%s", aggregate, action, version))
	if err != nil {
		panic(err)
	}
	return s
}

// EventSchema builds and validates an event schema URN from its parts.
func EventSchema(aggregate, action, version string) Schema {
	s, err := ParseSchema(fmt.Sprintf("urn:schema:jade:event:%s:%s:%s", aggregate, action, version))
	if err != nil {
		panic(err)
	}
	return s
}

// prefixPattern matches a valid stream-name prefix token: [a-z][a-z0-9-]*, <=32 chars.
var prefixPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,31}$`)

// ValidatePrefix checks a stream-prefix token against the grammar above.
func ValidatePrefix(prefix string) error {
	if !prefixPattern.MatchString(prefix) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}

// StreamID returns the "{prefix}-{aggregateID}" stream identifier.
func StreamID(prefix Prefix, aggregateID string) string {
	return string(prefix) + "-" + aggregateID
}
