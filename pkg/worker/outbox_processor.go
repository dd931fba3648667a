package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/pkg/logger"
	"github.com/jwalitptl/caregiver-api/pkg/messaging"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
)

// Add configuration options
type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	StaleAfter    time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	}
	return nil
}

// OutboxProcessor publishes pending outbox events to the broker.
type OutboxProcessor struct {
	repo       repository.OutboxRepository
	broker     messaging.Broker
	brokerName string
	config     OutboxProcessorConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	brokerName string,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}

	return &OutboxProcessor{
		repo:       repo,
		broker:     broker,
		brokerName: brokerName,
		config:     config,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "broker", p.brokerName)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessOnce claims one batch and publishes it. It returns how many events were published.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	if p.config.StaleAfter > 0 {
		released, err := p.repo.ReleaseStale(ctx, p.now().Add(-p.config.StaleAfter))
		if err != nil {
			p.logger.Warn(err, "Failed to release stale events")
		} else if released > 0 {
			p.logger.Info("Released stale outbox events", "count", released)
		}
	}

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.OutboxQueueSize.Set(float64(len(events)))

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		published++
	}

	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:         event.ID,
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}

	start := p.now()
	err := p.broker.Publish(ctx, event.EventType, msg)
	p.metrics.BrokerLatency.WithLabelValues(p.brokerName).Observe(time.Since(start).Seconds())

	if err != nil {
		p.metrics.BrokerOperations.WithLabelValues(p.brokerName, "error").Inc()
		p.metrics.OutboxEventsFailed.Inc()

		var retryAt *time.Time
		if event.RetryCount+1 < p.config.RetryAttempts {
			at := p.now().Add(p.backoff(event.RetryCount))
			retryAt = &at
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}
		if updateErr := p.repo.MarkFailed(ctx, event.ID, err.Error(), retryAt); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.BrokerOperations.WithLabelValues(p.brokerName, "success").Inc()
	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// backoff doubles the retry delay per attempt, capped at 64x.
func (p *OutboxProcessor) backoff(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	return p.config.RetryDelay << attempt
}
