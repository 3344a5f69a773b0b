package outbox

import (
	"context"
	"time"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
	"github.com/paperhouse/warehouse-backend/pkg/metrics"
)

// Consumer receives each unpublished event exactly once per successful drain
// pass. A non-nil error leaves the event unpublished and bumps its attempt
// count for the next pass.
type Consumer interface {
	Name() string
	Handle(ctx context.Context, event models.OutboxEvent) error
}

// Drainer moves committed outbox rows to the registered consumers.
type Drainer struct {
	repo        *Repository
	consumers   []Consumer
	logg        *logger.Logger
	metrics     *metrics.DrainMetrics
	batchSize   int
	interval    time.Duration
	maxAttempts int
}

// DrainerOptions tunes the polling loop.
type DrainerOptions struct {
	BatchSize   int
	Interval    time.Duration
	MaxAttempts int
}

// NewDrainer wires the drain loop.
func NewDrainer(repo *Repository, logg *logger.Logger, m *metrics.DrainMetrics, opts DrainerOptions, consumers ...Consumer) (*Drainer, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox repository required")
	}
	if len(consumers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "at least one consumer required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	return &Drainer{
		repo:        repo,
		consumers:   consumers,
		logg:        logg,
		metrics:     m,
		batchSize:   opts.BatchSize,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
	}, nil
}

// Run polls until the context is cancelled.
func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				if d.logg != nil {
					d.logg.Error(ctx, "outbox drain pass failed", err)
				}
			}
		}
	}
}

// DrainOnce delivers one batch and reports how many events were published.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	events, err := d.repo.FetchUnpublished(d.batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch unpublished events")
	}

	published := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if event.AttemptCount >= d.maxAttempts {
			// Poison event. Leave it for manual inspection instead of
			// retrying forever.
			continue
		}
		if err := d.deliver(ctx, event); err != nil {
			if markErr := d.repo.MarkFailed(event.ID, err); markErr != nil && d.logg != nil {
				d.logg.Error(ctx, "record delivery failure", markErr)
			}
			continue
		}
		if err := d.repo.MarkPublished(event.ID); err != nil {
			return published, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark event published")
		}
		published++
	}
	return published, nil
}

func (d *Drainer) deliver(ctx context.Context, event models.OutboxEvent) error {
	for _, consumer := range d.consumers {
		start := time.Now()
		err := consumer.Handle(ctx, event)
		if d.metrics != nil {
			d.metrics.ObserveDuration(consumer.Name(), time.Since(start))
			if err != nil {
				d.metrics.IncFailure(consumer.Name())
			} else {
				d.metrics.IncSuccess(consumer.Name())
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
