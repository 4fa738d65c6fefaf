package eventsourcing

// Version is this module's semantic version, reported as instrumentation
// version by the otel subpackage's tracer/meter.
const Version = "0.1.0"
