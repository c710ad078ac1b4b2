package db

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CircuitState represents the state of the database circuit breaker.
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"    // Normal operation
	CircuitStateOpen     CircuitState = "open"      // Failing, reject requests
	CircuitStateHalfOpen CircuitState = "half-open" // Testing if service recovered
)

var ErrCircuitOpen = errors.New("database circuit breaker is open")

// CircuitBreakerStore wraps a Store with circuit breaker functionality so a
// wedged database fails fast instead of piling up blocked requests.
type CircuitBreakerStore struct {
	store            Store
	logger           *slog.Logger
	failureThreshold int
	resetTimeout     time.Duration

	mu              sync.RWMutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	nextStateChange time.Time
}

// CircuitBreakerConfig contains configuration for the database circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultCircuitBreakerConfig returns the default database circuit breaker configuration.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// NewCircuitBreakerStore creates a new circuit breaker wrapped store.
func NewCircuitBreakerStore(store Store, config *CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerStore {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	return &CircuitBreakerStore{
		store:            store,
		logger:           logger,
		failureThreshold: config.FailureThreshold,
		resetTimeout:     config.ResetTimeout,
		state:            CircuitStateClosed,
	}
}

// allowRequest checks if a request should be allowed based on circuit state.
func (cb *CircuitBreakerStore) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	switch cb.state {
	case CircuitStateClosed:
		return true

	case CircuitStateOpen:
		if now.After(cb.nextStateChange) {
			cb.logger.Info("Database circuit breaker entering half-open state")
			cb.state = CircuitStateHalfOpen
			return true
		}
		return false

	case CircuitStateHalfOpen:
		return true

	default:
		return false
	}
}

// onSuccess records a successful request.
func (cb *CircuitBreakerStore) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0

	if cb.state == CircuitStateHalfOpen {
		cb.logger.Info("Database circuit breaker closing after successful request")
		cb.state = CircuitStateClosed
	}
}

// onFailure records a failed request.
func (cb *CircuitBreakerStore) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.state == CircuitStateHalfOpen {
		cb.logger.Warn("Database circuit breaker reopening after failed half-open request")
		cb.state = CircuitStateOpen
		cb.nextStateChange = time.Now().Add(cb.resetTimeout)
		return
	}

	if cb.failureCount >= cb.failureThreshold {
		cb.logger.Warn("Database circuit breaker opening due to excessive failures",
			slog.Int("failure_count", cb.failureCount),
			slog.Int("threshold", cb.failureThreshold),
			slog.Duration("reset_timeout", cb.resetTimeout))
		cb.state = CircuitStateOpen
		cb.nextStateChange = time.Now().Add(cb.resetTimeout)
	}
}

// execute runs a store call with circuit breaker protection.
func (cb *CircuitBreakerStore) execute(operation string, fn func() error) error {
	if !cb.allowRequest() {
		cb.logger.Warn("Database circuit breaker is open, rejecting request", slog.String("operation", operation))
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil {
		cb.onFailure()
		return err
	}

	cb.onSuccess()
	return nil
}

// GetState returns the current circuit state (for monitoring/debugging).
func (cb *CircuitBreakerStore) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetMetrics returns circuit breaker metrics.
func (cb *CircuitBreakerStore) GetMetrics() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return map[string]interface{}{
		"state":             cb.state,
		"failure_count":     cb.failureCount,
		"last_failure_time": cb.lastFailureTime,
	}
}

// Store interface implementation with circuit breaker protection

func (cb *CircuitBreakerStore) CreateVpc(ctx context.Context, name string) (Vpc, error) {
	var result Vpc
	err := cb.execute("CreateVpc", func() error {
		var err error
		result, err = cb.store.CreateVpc(ctx, name)
		return err
	})
	return result, err
}

func (cb *CircuitBreakerStore) GetVpcByName(ctx context.Context, name string) (Vpc, error) {
	var result Vpc
	err := cb.execute("GetVpcByName", func() error {
		var err error
		result, err = cb.store.GetVpcByName(ctx, name)
		return err
	})
	return result, err
}

func (cb *CircuitBreakerStore) ListVpcs(ctx context.Context) ([]Vpc, error) {
	var result []Vpc
	err := cb.execute("ListVpcs", func() error {
		var err error
		result, err = cb.store.ListVpcs(ctx)
		return err
	})
	return result, err
}

func (cb *CircuitBreakerStore) DeleteVpc(ctx context.Context, id int64) error {
	return cb.execute("DeleteVpc", func() error {
		return cb.store.DeleteVpc(ctx, id)
	})
}

func (cb *CircuitBreakerStore) CreateAllocation(ctx context.Context, arg CreateAllocationParams) error {
	return cb.execute("CreateAllocation", func() error {
		return cb.store.CreateAllocation(ctx, arg)
	})
}

func (cb *CircuitBreakerStore) GetAllocation(ctx context.Context, id string) (Allocation, error) {
	var result Allocation
	err := cb.execute("GetAllocation", func() error {
		var err error
		result, err = cb.store.GetAllocation(ctx, id)
		return err
	})
	return result, err
}

func (cb *CircuitBreakerStore) ListAllocations(ctx context.Context) ([]Allocation, error) {
	var result []Allocation
	err := cb.execute("ListAllocations", func() error {
		var err error
		result, err = cb.store.ListAllocations(ctx)
		return err
	})
	return result, err
}

func (cb *CircuitBreakerStore) UpdateAllocationVpc(ctx context.Context, arg UpdateAllocationVpcParams) error {
	return cb.execute("UpdateAllocationVpc", func() error {
		return cb.store.UpdateAllocationVpc(ctx, arg)
	})
}

func (cb *CircuitBreakerStore) DeleteAllocation(ctx context.Context, id string) error {
	return cb.execute("DeleteAllocation", func() error {
		return cb.store.DeleteAllocation(ctx, id)
	})
}

func (cb *CircuitBreakerStore) ExecTx(ctx context.Context, fn func(*Queries) error) error {
	return cb.execute("ExecTx", func() error {
		return cb.store.ExecTx(ctx, fn)
	})
}

func (cb *CircuitBreakerStore) Ping(ctx context.Context) error {
	return cb.execute("Ping", func() error {
		return cb.store.Ping(ctx)
	})
}

func (cb *CircuitBreakerStore) Close() error {
	// Close operation doesn't need circuit breaker protection
	return cb.store.Close()
}
