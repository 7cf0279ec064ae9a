package keyword

const (
	TotalHttpRequestsMetricName    = "total_http_requests"
	TotalHttpResponsesMetricName   = "total_http_responses"
	HttpResponseStatusesMetricName = "http_response_statuses"
	HttpResponseTimeMsMetricName   = "http_response_time_ms"

	CacheLookupsMetricName       = "widget_cache_lookups_total"
	CacheBackendErrorsMetricName = "widget_cache_backend_errors_total"
	UpstreamCallsMetricName      = "widget_upstream_calls_total"
	FallbacksMetricName          = "widget_fallbacks_total"
)
