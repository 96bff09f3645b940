// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Endpoint names an API call. It keys the per-endpoint counters and the
// client's rate limiters.
type Endpoint string

// Endpoints of the membership API.
const (
	EndpointLogin       Endpoint = "login"
	EndpointVerify      Endpoint = "verify"
	EndpointRefresh     Endpoint = "refresh"
	EndpointPermissions Endpoint = "permissions"
)

// Endpoints lists every known endpoint in call order.
func Endpoints() []Endpoint {
	return []Endpoint{EndpointLogin, EndpointVerify, EndpointRefresh, EndpointPermissions}
}

// ParseEndpoint returns the endpoint named s.
func ParseEndpoint(s string) (Endpoint, bool) {
	for _, e := range Endpoints() {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// API metrics
	apiCallsTotal   atomic.Int64
	apiErrorsTotal  atomic.Int64
	apiLatencyNanos atomic.Int64

	// Per-endpoint API calls
	loginCalls       atomic.Int64
	verifyCalls      atomic.Int64
	refreshCalls     atomic.Int64
	permissionsCalls atomic.Int64

	// Token cache metrics
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cachePurges atomic.Int64
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordAPICall records an API call with its duration and outcome.
func (m *Metrics) RecordAPICall(endpoint Endpoint, duration time.Duration, err error) {
	m.apiCallsTotal.Add(1)
	m.apiLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.apiErrorsTotal.Add(1)
	}

	switch endpoint {
	case EndpointLogin:
		m.loginCalls.Add(1)
	case EndpointVerify:
		m.verifyCalls.Add(1)
	case EndpointRefresh:
		m.refreshCalls.Add(1)
	case EndpointPermissions:
		m.permissionsCalls.Add(1)
	}
}

// RecordCacheHit records a token cache load that produced a session.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a token cache load that found no file.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordCachePurge records a token cache file deleted as stale or unreadable.
// A purge also counts as a miss.
func (m *Metrics) RecordCachePurge() {
	m.cachePurges.Add(1)
	m.cacheMisses.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	APICallsTotal    int64 `json:"api_calls_total"`
	APIErrorsTotal   int64 `json:"api_errors_total"`
	APILatencyNanos  int64 `json:"api_latency_nanos"`
	LoginCalls       int64 `json:"login_calls"`
	VerifyCalls      int64 `json:"verify_calls"`
	RefreshCalls     int64 `json:"refresh_calls"`
	PermissionsCalls int64 `json:"permissions_calls"`
	CacheHits        int64 `json:"cache_hits"`
	CacheMisses      int64 `json:"cache_misses"`
	CachePurges      int64 `json:"cache_purges"`
}

// String renders the snapshot on one line for the debug log.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"api_calls=%d api_errors=%d login=%d verify=%d refresh=%d permissions=%d cache_hits=%d cache_misses=%d cache_purges=%d",
		s.APICallsTotal, s.APIErrorsTotal, s.LoginCalls, s.VerifyCalls, s.RefreshCalls,
		s.PermissionsCalls, s.CacheHits, s.CacheMisses, s.CachePurges,
	)
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		APICallsTotal:    m.apiCallsTotal.Load(),
		APIErrorsTotal:   m.apiErrorsTotal.Load(),
		APILatencyNanos:  m.apiLatencyNanos.Load(),
		LoginCalls:       m.loginCalls.Load(),
		VerifyCalls:      m.verifyCalls.Load(),
		RefreshCalls:     m.refreshCalls.Load(),
		PermissionsCalls: m.permissionsCalls.Load(),
		CacheHits:        m.cacheHits.Load(),
		CacheMisses:      m.cacheMisses.Load(),
		CachePurges:      m.cachePurges.Load(),
	}
}

// APILatencyAvgMs returns the average API latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) APILatencyAvgMs() float64 {
	calls := m.apiCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.apiLatencyNanos.Load()) / float64(calls) / 1e6
}

// Reset resets all metrics to zero.
func (m *Metrics) Reset() {
	m.apiCallsTotal.Store(0)
	m.apiErrorsTotal.Store(0)
	m.apiLatencyNanos.Store(0)
	m.loginCalls.Store(0)
	m.verifyCalls.Store(0)
	m.refreshCalls.Store(0)
	m.permissionsCalls.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.cachePurges.Store(0)
}
