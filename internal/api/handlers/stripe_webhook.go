package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"gymdesk/internal/core"
	"gymdesk/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook
// payload (64 KB). Stripe payloads are small; the cap protects against
// abuse on the unauthenticated route.
const maxWebhookBodySize = 64 * 1024

// Stripe event types the handler acts on. Everything else is acknowledged
// and ignored.
const (
	eventInvoicePaid        = "invoice.paid"
	eventInvoicePayFailed   = "invoice.payment_failed"
	eventSubscriptionUpdate = "customer.subscription.updated"
	eventSubscriptionDelete = "customer.subscription.deleted"
)

// BillingStateStore manages the tenant billing state touched by webhook
// events. db.TenantRepository is the production implementation.
type BillingStateStore interface {
	GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Tenant, error)
	UpdatePaymentState(ctx context.Context, id string, state types.PaymentState) error
	UpdatePlan(ctx context.Context, id string, plan types.PlanCode) error
}

// StripeWebhookHandler handles asynchronous billing events from Stripe.
// The route is public (Stripe calls it directly, no bearer token);
// authenticity comes from verifying the Stripe-Signature header against
// the webhook signing secret.
type StripeWebhookHandler struct {
	tenants BillingStateStore
	secret  types.SecretString
	logger  *slog.Logger

	// constructEvent is injectable for tests; defaults to
	// webhook.ConstructEvent.
	constructEvent func(payload []byte, sigHeader, secret string) (stripe.Event, error)
}

// NewStripeWebhookHandler creates a StripeWebhookHandler.
func NewStripeWebhookHandler(tenants BillingStateStore, secret types.SecretString, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		tenants:        tenants,
		secret:         secret,
		logger:         logger,
		constructEvent: webhook.ConstructEvent,
	}
}

// RegisterRoutes mounts the webhook endpoint. The path is on the auth
// middleware's public list, so no actor is present on these requests.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/webhook", h.Handle)
}

// Handle processes an incoming Stripe webhook delivery.
//
// Internal processing failures after a verified signature still return
// 200: Stripe retries on non-2xx, and a retry loop over a persistent
// database error only amplifies the outage. Failures are logged for
// investigation instead.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidBody,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	event, err := h.constructEvent(payload, sigHeader, h.secret.Unmask())
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", string(event.Type),
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", string(event.Type),
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

// routeEvent dispatches the event by type.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripe.Event) error {
	switch string(event.Type) {
	case eventInvoicePaid:
		return h.handleInvoicePaid(ctx, event)
	case eventInvoicePayFailed:
		return h.handlePaymentFailed(ctx, event)
	case eventSubscriptionUpdate:
		return h.handleSubscriptionUpdated(ctx, event)
	case eventSubscriptionDelete:
		return h.handleSubscriptionDeleted(ctx, event)
	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", string(event.Type),
		)
		return nil
	}
}

// stripeEventObject holds the minimal fields the handler reads from an
// event's data object. The same shape covers invoices and subscriptions.
type stripeEventObject struct {
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// resolveTenant decodes the event object and looks up the tenant by its
// Stripe customer ID.
func (h *StripeWebhookHandler) resolveTenant(ctx context.Context, event *stripe.Event) (*types.Tenant, *stripeEventObject, error) {
	var obj stripeEventObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, nil, fmt.Errorf("decode event object: %w", err)
	}
	if obj.Customer == "" {
		return nil, nil, fmt.Errorf("event %s carries no customer reference", event.ID)
	}

	tenant, err := h.tenants.GetByStripeCustomerID(ctx, obj.Customer)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve customer %s: %w", obj.Customer, err)
	}
	return tenant, &obj, nil
}

// handleInvoicePaid restores a tenant to active standing. Limit checks
// that refused writes during the unpaid window pass again on the next
// request; nothing needs explicit unfreezing.
func (h *StripeWebhookHandler) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	tenant, _, err := h.resolveTenant(ctx, event)
	if err != nil {
		return err
	}

	if err := h.tenants.UpdatePaymentState(ctx, tenant.ID, types.PaymentActive); err != nil {
		return fmt.Errorf("restore payment state: %w", err)
	}

	h.logger.InfoContext(ctx, "tenant restored to active after payment",
		"event_id", event.ID,
		"tenant_id", tenant.ID,
	)
	return nil
}

// handlePaymentFailed moves a tenant to unpaid. Unpaid tenants keep read
// access but every capacity-gated write is refused until payment clears.
func (h *StripeWebhookHandler) handlePaymentFailed(ctx context.Context, event *stripe.Event) error {
	tenant, _, err := h.resolveTenant(ctx, event)
	if err != nil {
		return err
	}

	if err := h.tenants.UpdatePaymentState(ctx, tenant.ID, types.PaymentUnpaid); err != nil {
		return fmt.Errorf("record payment failure: %w", err)
	}

	h.logger.WarnContext(ctx, "tenant marked unpaid after payment failure",
		"event_id", event.ID,
		"tenant_id", tenant.ID,
	)
	return nil
}

// handleSubscriptionUpdated applies a plan change. The target plan code
// travels in the subscription metadata, set when the subscription is
// created or modified through the checkout flow.
func (h *StripeWebhookHandler) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	tenant, obj, err := h.resolveTenant(ctx, event)
	if err != nil {
		return err
	}

	code := types.PlanCode(obj.Metadata["plan_code"])
	switch code {
	case types.PlanBasico, types.PlanPro, types.PlanElite:
	case "":
		h.logger.InfoContext(ctx, "subscription update carries no plan change",
			"event_id", event.ID,
			"tenant_id", tenant.ID,
		)
		return nil
	default:
		return fmt.Errorf("event %s references unknown plan code %q", event.ID, string(code))
	}

	if code == tenant.PlanCode {
		return nil
	}
	if err := h.tenants.UpdatePlan(ctx, tenant.ID, code); err != nil {
		return fmt.Errorf("apply plan change: %w", err)
	}

	h.logger.InfoContext(ctx, "tenant plan changed",
		"event_id", event.ID,
		"tenant_id", tenant.ID,
		"old_plan", string(tenant.PlanCode),
		"new_plan", string(code),
	)
	return nil
}

// handleSubscriptionDeleted suspends the tenant. Suspension is a payment
// state, not a deletion; data is retained and the tenant reactivates by
// subscribing again.
func (h *StripeWebhookHandler) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	tenant, _, err := h.resolveTenant(ctx, event)
	if err != nil {
		return err
	}

	if err := h.tenants.UpdatePaymentState(ctx, tenant.ID, types.PaymentSuspended); err != nil {
		return fmt.Errorf("suspend tenant: %w", err)
	}

	h.logger.WarnContext(ctx, "tenant suspended after subscription cancellation",
		"event_id", event.ID,
		"tenant_id", tenant.ID,
	)
	return nil
}
