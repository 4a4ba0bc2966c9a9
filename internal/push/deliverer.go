package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/metrics"
	"github.com/blogify/notifier/internal/telemetry"
	"go.uber.org/zap"
)

// Deliverer resolves a user's subscription, sends, and cleans up dead ones.
type Deliverer struct {
	registry *Registry
	sender   Sender
}

func NewDeliverer(registry *Registry, sender Sender) *Deliverer {
	return &Deliverer{registry: registry, sender: sender}
}

// Deliver never fails; every problem is folded into the Outcome.
func (d *Deliverer) Deliver(ctx context.Context, userID string, payload Payload) Outcome {
	ctx, span := telemetry.StartSpan(ctx, "push.deliver", "user_id", userID)
	defer span.End()

	outcome := d.deliver(ctx, userID, payload)

	telemetry.RecordPushOutcome(span, string(outcome.Kind), outcome.StatusCode)
	if outcome.Err != nil {
		telemetry.RecordError(span, outcome.Err)
	}
	metrics.Get().PushDeliveriesTotal.WithLabelValues(string(outcome.Kind)).Inc()

	fields := []zap.Field{logger.WithUserID(userID), zap.Stringer("outcome", outcome)}
	switch outcome.Kind {
	case TransientFailure:
		logger.Log.Warn("Push delivery failed", append(fields, zap.Error(outcome.Err))...)
	case PermanentFailure:
		logger.Log.Info("Push subscription expired", fields...)
	default:
		logger.Log.Debug("Push delivery finished", fields...)
	}
	return outcome
}

func (d *Deliverer) deliver(ctx context.Context, userID string, payload Payload) Outcome {
	sub, err := d.registry.Get(ctx, userID)
	if errors.IsCode(err, errors.ErrNotFound) {
		return Outcome{Kind: Skipped, Reason: ReasonNoSubscription}
	}
	if err != nil {
		return Outcome{Kind: TransientFailure, Err: errors.DeliveryFailure(0, err)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Kind: TransientFailure, Err: errors.DeliveryFailure(0, err)}
	}

	start := time.Now()
	status, sendErr := d.sender.Send(ctx, sub, body)
	metrics.Get().PushDuration.Observe(time.Since(start).Seconds())

	outcome := Classify(status, sendErr)
	if outcome.Kind == PermanentFailure {
		if _, err := d.registry.Forget(ctx, userID, sub.Endpoint); err != nil {
			logger.Log.Warn("Failed to remove expired push subscription", logger.WithUserID(userID), zap.Error(err))
		}
	}
	return outcome
}
