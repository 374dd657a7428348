package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// REST 接口只读且多数命中内存或单条 SQL，桶集中在百毫秒以内。
var (
	httpRequests = newCounter("iris_http_requests_total",
		"REST requests by route, method and status code.", "route", "method", "code")
	httpDuration = newHistogram("iris_http_request_duration_seconds",
		"REST request latency by route.", []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}, "route")
)

// ObserveHTTPRequest 记录一次请求。route 为路由名，如 logs.list。
func ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	httpRequests.add(1, route, method, strconv.Itoa(status))
	httpDuration.observe(duration.Seconds(), route)
}

// HTTPRequestCount 返回某路由某状态码的请求数。
func HTTPRequestCount(route, method string, status int) uint64 {
	return httpRequests.value(route, method, strconv.Itoa(status))
}

// Handler 以 Prometheus 文本格式输出全部指标。
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_ = defaultRegistry.writeTo(w)
	})
}
