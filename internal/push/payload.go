// Package push delivers notifications to browsers over Web Push and keeps
// the per-user subscription registry.
package push

import (
	"fmt"
	"net/http"

	"github.com/blogify/notifier/internal/errors"
)

// Payload is the JSON document the service worker receives.
type Payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	URL       string `json:"url"`
	Image     string `json:"image,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix ms
}

// OutcomeKind classifies one delivery attempt.
type OutcomeKind string

const (
	Delivered        OutcomeKind = "delivered"
	Skipped          OutcomeKind = "skipped"
	PermanentFailure OutcomeKind = "permanent_failure"
	TransientFailure OutcomeKind = "transient_failure"
)

// ReasonNoSubscription is the only reason a delivery is skipped.
const ReasonNoSubscription = "no_subscription"

// Outcome is the result of Deliver. Err, when set, is a DELIVERY_FAILURE.
type Outcome struct {
	Kind       OutcomeKind
	Reason     string
	StatusCode int
	Err        error
}

func (o Outcome) String() string {
	if o.Reason != "" {
		return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
	}
	if o.StatusCode != 0 {
		return fmt.Sprintf("%s(%d)", o.Kind, o.StatusCode)
	}
	return string(o.Kind)
}

// Classify maps a push-service answer to an outcome. 404 and 410 mean the
// subscription is gone; anything else that is not 2xx may recover.
func Classify(statusCode int, err error) Outcome {
	switch {
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return Outcome{Kind: PermanentFailure, StatusCode: statusCode, Err: errors.DeliveryFailure(statusCode, err)}
	case err == nil && statusCode >= 200 && statusCode < 300:
		return Outcome{Kind: Delivered, StatusCode: statusCode}
	default:
		return Outcome{Kind: TransientFailure, StatusCode: statusCode, Err: errors.DeliveryFailure(statusCode, err)}
	}
}
