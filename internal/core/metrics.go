package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"gymdesk/internal/types"
)

// putMetricTimeout bounds each PutMetricData call so a slow CloudWatch
// endpoint cannot stall request handling.
const putMetricTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits API and enforcement telemetry to AWS CloudWatch
// under the GymDesk namespace.
//
// Metrics emitted:
//   - APIRequestCount: Dims {Method, Endpoint, Status} -- on every request
//   - APILatency:      Dims {Method, Endpoint} -- request duration in ms
//   - QuotaDecision:   Dims {UsageType, Result} -- quota gate outcomes
//   - LimitRefusal:    Dims {Resource} -- capacity check refusals
//
// Emission is best-effort: failures are logged and never surfaced to the
// request path.
var _ MetricsCollector = (*CloudWatchMetrics)(nil)

type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics that publishes to the
// GymDesk CloudWatch namespace.
func NewCloudWatchMetrics(client CloudWatchClient, logger *slog.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// RecordRequest emits the request count and latency metrics for a completed
// API request.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricAPIRequestCount),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Method"), Value: aws.String(method)},
					{Name: aws.String("Endpoint"), Value: aws.String(endpoint)},
					{Name: aws.String("Status"), Value: aws.String(status)},
				},
			},
			{
				MetricName: aws.String(types.MetricAPILatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Method"), Value: aws.String(method)},
					{Name: aws.String("Endpoint"), Value: aws.String(endpoint)},
				},
			},
		},
	}

	m.put(input, "request")
}

// RecordQuotaDecision emits a QuotaDecision metric. Result is "allowed",
// "exhausted", or "not_entitled".
func (m *CloudWatchMetrics) RecordQuotaDecision(usageType types.UsageType, result string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricQuotaDecision),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("UsageType"), Value: aws.String(string(usageType))},
					{Name: aws.String("Result"), Value: aws.String(result)},
				},
			},
		},
	}

	m.put(input, "quota decision")
}

// RecordLimitRefusal emits a LimitRefusal metric. Resource is "member" or
// "branch".
func (m *CloudWatchMetrics) RecordLimitRefusal(resource string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricLimitRefusal),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Resource"), Value: aws.String(resource)},
				},
			},
		},
	}

	m.put(input, "limit refusal")
}

func (m *CloudWatchMetrics) put(input *cloudwatch.PutMetricDataInput, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), putMetricTimeout)
	defer cancel()

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record "+kind+" metric", "error", err)
	}
}
