// Command worker runs the queue receiver and worker host of components
// 4.I/4.J: it claims tasks from the database-backed queue, dispatches them
// through the same CommandBus the apiserver uses, and resolves each task
// based on the outcome.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	es "github.com/jade/eventsourcing"
	"github.com/jade/eventsourcing/eventbus/memory"
	pgevents "github.com/jade/eventsourcing/eventstore/postgres"
	"github.com/jade/eventsourcing/examples/customer"
	"github.com/jade/eventsourcing/examples/order"
	"github.com/jade/eventsourcing/internal/config"
	"github.com/jade/eventsourcing/internal/dbconn"
	"github.com/jade/eventsourcing/logging"
	esotel "github.com/jade/eventsourcing/otel"
	"github.com/jade/eventsourcing/queue"
	pgqueue "github.com/jade/eventsourcing/queue/postgres"
)

// auditLog is the event-side effect wired onto the bus: a projection that
// logs every customer and order event as it lands, standing in for a real
// read-model projector.
func auditLog(logger *logrus.Entry) es.EventHandler {
	return logging.WithEventLogging(logger, es.NewEventHandlerFunc(func(ctx context.Context, event es.Event) error {
		return nil
	}))
}

type logNotifier struct {
	logger *logrus.Entry
}

func (n logNotifier) SendConfirmation(ctx context.Context, orderID string) error {
	n.logger.WithField("orderId", orderID).Info("order confirmation sent")
	return nil
}

func main() {
	logger := logrus.New()

	var cfg config.WorkerConfig
	if err := config.Load(&cfg); err != nil {
		logger.WithError(err).Fatal("load config")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := dbconn.Connect(ctx, cfg.DB)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()

	if err := pgevents.Migrate(ctx, pool); err != nil {
		logger.WithError(err).Fatal("run event store migrations")
	}
	if err := pgqueue.Migrate(ctx, pool); err != nil {
		logger.WithError(err).Fatal("run queue migrations")
	}

	registry := es.NewRegistry()
	bus := es.NewCommandBus(128, 16, registry)
	defer bus.Stop()

	eventBus := esotel.WithEventBusTelemetry(memory.NewEventBus(64))
	defer eventBus.Close()
	if err := eventBus.Subscribe(ctx, "audit-log", auditLog(logrus.NewEntry(logger))); err != nil {
		logger.WithError(err).Fatal("subscribe audit log projection")
	}
	go func() {
		for err := range eventBus.Errors() {
			logger.WithError(err).Warn("event bus subscriber error")
		}
	}()

	store := esotel.WithEventStoreTelemetry(pgevents.NewEventStore(pool, registry, pgevents.WithEventBus(eventBus)))
	defer store.Close()

	if err := customer.Wire(store, bus, registry, logrus.NewEntry(logger)); err != nil {
		logger.WithError(err).Fatal("wire customer aggregate")
	}
	if err := order.Wire(store, bus, registry, logNotifier{logger: logrus.NewEntry(logger)}, logrus.NewEntry(logger)); err != nil {
		logger.WithError(err).Fatal("wire order aggregate")
	}

	storage := pgqueue.NewStorage(pool)
	receiver := queue.NewReceiver(storage, registry, bus, cfg.Queue, logrus.NewEntry(logger))
	host := queue.NewWorkerHost(receiver, cfg.Queue)

	logger.WithField("queues", cfg.Queue.Queues).Info("worker starting")
	host.Start(ctx)

	<-ctx.Done()
	logger.Info("worker stopping")
	host.Stop()
}
