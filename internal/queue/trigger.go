// Package queue provides the SQS-based producer for billing alert payloads
// consumed by the external notification service.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"gymdesk/internal/config"
	"gymdesk/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AlertTrigger serializes BillingAlertMessages and sends them to the billing
// alerts SQS queue. Delivery to tenants (email, push) happens in an external
// worker; this producer only guarantees enqueue.
//
// An empty queue URL disables dispatch entirely: Send becomes a logged no-op.
// That keeps local development and tests free of AWS infrastructure without
// branching at every call site.
type AlertTrigger struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewAlertTrigger creates a new AlertTrigger with the given SQS client and
// configuration. It reads the queue URL from the AWSConfig.
func NewAlertTrigger(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *AlertTrigger {
	return &AlertTrigger{
		client:   client,
		queueURL: awsCfg.AlertQueueURL,
		logger:   logger,
	}
}

// LimitRefused enqueues an alert for a refused capacity operation (member or
// branch add blocked by plan limits or nonpayment).
func (t *AlertTrigger) LimitRefused(ctx context.Context, tenantID string, kind types.AlertKind, detail string) error {
	return t.Send(ctx, types.BillingAlertMessage{
		TenantID:   tenantID,
		Kind:       kind,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
		TraceID:    traceID(ctx),
	})
}

// QuotaExhausted enqueues an alert for a user hitting their daily AI quota.
func (t *AlertTrigger) QuotaExhausted(ctx context.Context, tenantID string, usageType types.UsageType, detail string) error {
	return t.Send(ctx, types.BillingAlertMessage{
		TenantID:   tenantID,
		Kind:       types.AlertQuotaExhausted,
		UsageType:  usageType,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
		TraceID:    traceID(ctx),
	})
}

// Send serializes the BillingAlertMessage to JSON and dispatches it to the
// alert queue. Alerts are advisory: callers should log Send failures but
// never fail the originating request because of them.
func (t *AlertTrigger) Send(ctx context.Context, msg types.BillingAlertMessage) error {
	if t.queueURL == "" {
		t.logger.DebugContext(ctx, "alert dispatch disabled, dropping message",
			"tenant_id", msg.TenantID,
			"kind", string(msg.Kind),
		)
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal BillingAlertMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Kind)),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			"failed to enqueue billing alert",
			fmt.Errorf("queue: send to %s: %w", t.queueURL, err),
		)
	}

	t.logger.InfoContext(ctx, "billing alert sent",
		"queue_url", t.queueURL,
		"tenant_id", msg.TenantID,
		"kind", string(msg.Kind),
		"usage_type", string(msg.UsageType),
		"trace_id", msg.TraceID,
	)

	return nil
}

// traceID reuses the request correlation ID where one exists so alerts can
// be tied back to the originating API call; otherwise a fresh ID is minted.
func traceID(ctx context.Context) string {
	if id := types.GetRequestID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
