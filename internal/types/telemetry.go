package types

// MetricNamespace is the CloudWatch namespace for all GymDesk metrics.
const MetricNamespace = "GymDesk"

// Metric name constants. Emitted by the core metrics collector; dashboards
// and alarms reference these names, so treat them as a public contract.
const (
	// MetricAPIRequestCount counts API requests. Dims: {Method, Endpoint, Status}.
	MetricAPIRequestCount = "APIRequestCount"

	// MetricAPILatency records request duration in milliseconds.
	// Dims: {Method, Endpoint}.
	MetricAPILatency = "APILatency"

	// MetricQuotaDecision counts quota gate outcomes. Dims: {UsageType, Result},
	// where Result is "allowed", "exhausted", or "not_entitled".
	MetricQuotaDecision = "QuotaDecision"

	// MetricLimitRefusal counts capacity check refusals. Dims: {Resource},
	// where Resource is "member" or "branch".
	MetricLimitRefusal = "LimitRefusal"
)
