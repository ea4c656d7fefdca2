package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/insightdeck/insightdeck/config"
)

// Limits captures the concurrency and payload guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxOpenSessions       int

	// Payload bounds
	MaxUploadBytes int64

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxOpenSessions int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxOpenSessions <= 0 {
		maxOpenSessions = config.DefaultMaxOpenSessions
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxOpenSessions:       maxOpenSessions,
		MaxUploadBytes:        config.DefaultMaxUploadBytes,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// Controller coordinates runtime semaphores for request and session guardrails.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
	sessionSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		sessionSemaphore: semaphore.NewWeighted(int64(limits.MaxOpenSessions)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// AcquireSession reserves an open session slot.
func (c *Controller) AcquireSession(ctx context.Context) error {
	return c.sessionSemaphore.Acquire(ctx, 1)
}

// ReleaseSession frees an open session slot.
func (c *Controller) ReleaseSession() {
	c.sessionSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and handlers.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
