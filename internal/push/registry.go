package push

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/models"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionKeys are the browser-generated encryption keys.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// SubscriptionInput is a PushSubscription as serialised by the browser.
type SubscriptionInput struct {
	Endpoint string           `json:"endpoint" validate:"required,url"`
	Keys     SubscriptionKeys `json:"keys"`
}

// Registry stores at most one subscription per user.
type Registry struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewRegistry(db *gorm.DB) *Registry {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Registry{db: db, validate: v}
}

// Validate checks a subscription without storing it.
func (r *Registry) Validate(in SubscriptionInput) error {
	err := r.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		// drop the root type from "SubscriptionInput.keys.p256dh"
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msg := "is required"
		if fe.Tag() == "url" {
			msg = "must be a URL"
		}
		return errors.InvalidSubscription(field, field+" "+msg)
	}
	return errors.InvalidSubscription("subscription", err.Error())
}

// Subscribe upserts the caller's subscription, replacing any earlier one.
func (r *Registry) Subscribe(ctx context.Context, userID string, in SubscriptionInput) (*models.PushSubscription, error) {
	if userID == "" {
		return nil, errors.Unauthorized("user not authenticated")
	}
	if err := r.Validate(in); err != nil {
		return nil, err
	}

	sub := &models.PushSubscription{
		UserID:   userID,
		Endpoint: in.Endpoint,
		P256dh:   in.Keys.P256dh,
		Auth:     in.Keys.Auth,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"endpoint", "p256dh", "auth", "updated_at"}),
		}).
		Create(sub).Error
	if err != nil {
		return nil, fmt.Errorf("save push subscription: %w", err)
	}
	return r.Get(ctx, userID)
}

// Unsubscribe removes the caller's subscription; a missing one is fine.
func (r *Registry) Unsubscribe(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PushSubscription{}).Error; err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// Get returns NotFound when the user has no subscription.
func (r *Registry) Get(ctx context.Context, userID string) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := r.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("push subscription")
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return &sub, nil
}

// Forget deletes the subscription only if it still points at endpoint, so a
// fresh subscribe is not undone by a failure against the old endpoint.
func (r *Registry) Forget(ctx context.Context, userID, endpoint string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&models.PushSubscription{})
	if res.Error != nil {
		return false, fmt.Errorf("forget push subscription: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
