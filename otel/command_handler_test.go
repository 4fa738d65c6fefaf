package otel_test

import (
	"context"
	"errors"
	"testing"

	eventsourcing "github.com/jade/eventsourcing"
	"github.com/jade/eventsourcing/fixtures"
	esotel "github.com/jade/eventsourcing/otel"
)

func TestWithCommandTelemetry_PassesThroughSuccess(t *testing.T) {
	handler := esotel.WithCommandTelemetry(func(ctx context.Context, cmd fixtures.TestCommand) (eventsourcing.AppendResult, error) {
		return eventsourcing.AppendResult{Successful: true, NextExpectedVersion: 3}, nil
	})

	result, err := handler(context.Background(), fixtures.TestCommand{ID: "c1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Successful || result.NextExpectedVersion != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestWithCommandTelemetry_PassesThroughDomainRejection(t *testing.T) {
	rejection := eventsourcing.NewDomainRejection("command %q is invalid", "c1")
	handler := esotel.WithCommandTelemetry(func(ctx context.Context, cmd fixtures.TestCommand) (eventsourcing.AppendResult, error) {
		return eventsourcing.AppendResult{}, rejection
	})

	_, err := handler(context.Background(), fixtures.TestCommand{ID: "c1"})
	var got *eventsourcing.DomainRejection
	if !errors.As(err, &got) {
		t.Fatalf("expected the domain rejection to pass through unchanged, got %v", err)
	}
}

func TestWithCommandTelemetry_PassesThroughConcurrencyConflict(t *testing.T) {
	handler := esotel.WithCommandTelemetry(func(ctx context.Context, cmd fixtures.TestCommand) (eventsourcing.AppendResult, error) {
		return eventsourcing.AppendResult{}, eventsourcing.ErrConcurrency
	})

	_, err := handler(context.Background(), fixtures.TestCommand{ID: "c1"})
	if !errors.Is(err, eventsourcing.ErrConcurrency) {
		t.Fatalf("expected ErrConcurrency to pass through, got %v", err)
	}
}
