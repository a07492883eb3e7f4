package controllers

import (
	"net/http"
	"time"

	"github.com/auricjewels/auric-backend/api/responses"
	"github.com/auricjewels/auric-backend/api/validators"
	"github.com/auricjewels/auric-backend/internal/payments"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/logger"
	pkgredis "github.com/auricjewels/auric-backend/pkg/redis"
)

const (
	webhookEventCaptured = "payment.captured"
	webhookEventFailed   = "payment.failed"
	webhookGuardScope    = "gateway-webhook"
)

type gatewayWebhookRequest struct {
	Event          string `json:"event" validate:"required"`
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
	PaymentID      string `json:"payment_id" validate:"required"`
	Signature      string `json:"signature"`
}

// GatewayWebhook ingests the payment gateway's capture callbacks. A redis
// SetNX guard short-circuits replays cheaply; the paid flag on the order row
// stays the authoritative gate when redis forgets.
func GatewayWebhook(svc payments.Service, guard pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload gatewayWebhookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var guardKey string
		if guard != nil {
			guardKey = guard.IdempotencyKey(webhookGuardScope, payload.Event+":"+payload.PaymentID)
			first, err := guard.SetNX(ctx, guardKey, "1", ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook replay"))
				return
			}
			if !first {
				responses.WriteSuccess(w, map[string]string{"status": "replayed"})
				return
			}
		}

		switch payload.Event {
		case webhookEventCaptured:
			order, err := svc.ApplyVerifiedPayment(ctx, payments.ApplyPaymentInput{
				GatewayOrderID: payload.GatewayOrderID,
				PaymentID:      payload.PaymentID,
				Signature:      payload.Signature,
			})
			if err != nil {
				// Drop the guard record so the gateway's retry can land.
				if guard != nil {
					_ = guard.Del(ctx, guardKey)
				}
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]any{"status": "processed", "order_id": order.ID})
		case webhookEventFailed:
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "payment_id", payload.PaymentID), "gateway reported failed capture")
			}
			responses.WriteSuccess(w, map[string]string{"status": "acknowledged"})
		default:
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
		}
	}
}
