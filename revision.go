package eventsourcing

// StreamState is the concurrency precondition evaluated when Save appends
// to a stream.
type StreamState interface {
	isStreamState()
}

// Any appends without checking the current stream version.
type Any struct{}

func (Any) isStreamState() {}

// NoStream requires the stream not to exist yet — the "create" path.
type NoStream struct{}

func (NoStream) isStreamState() {}

// StreamExists requires the stream to already exist.
type StreamExists struct{}

func (StreamExists) isStreamState() {}

// Revision requires the stream's current version to equal exactly this
// value — the optimistic-concurrency token used by the "decide" path.
type Revision uint64

func (Revision) isStreamState() {}
