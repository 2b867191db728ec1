package hedge

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockExecutor provides a scriptable ExecuteFunc for testing races.
// Each attempt index is scripted with a duration and an outcome; the
// executor records which attempts were started and which were cancelled,
// so tests can assert on firing order and cancellation propagation.
type MockExecutor struct {
	mu          sync.Mutex
	scripts     map[int]mockScript
	fallback    mockScript
	hasFallback bool
	started     []int
	cancelled   []int
}

type mockScript struct {
	delay time.Duration
	value any
	err   error
}

// errUnscripted is returned for attempts with no scripted outcome.
var errUnscripted = errors.New("hedge: no scripted outcome for attempt")

// NewMockExecutor creates an executor with no scripted attempts.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{scripts: make(map[int]mockScript)}
}

// OnAttempt scripts attempt idx to settle with value after delay.
func (m *MockExecutor) OnAttempt(idx int, delay time.Duration, value any) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[idx] = mockScript{delay: delay, value: value}
	return m
}

// OnAttemptError scripts attempt idx to fail with err after delay.
func (m *MockExecutor) OnAttemptError(idx int, delay time.Duration, err error) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[idx] = mockScript{delay: delay, err: err}
	return m
}

// OnAny scripts a fallback outcome for attempts without their own script.
func (m *MockExecutor) OnAny(delay time.Duration, value any, err error) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = mockScript{delay: delay, value: value, err: err}
	m.hasFallback = true
	return m
}

// Execute implements ExecuteFunc. It waits out the scripted delay, then
// returns the scripted outcome; a cancellation arriving first wins and is
// recorded.
func (m *MockExecutor) Execute(ctx context.Context, attempt int) (any, error) {
	m.mu.Lock()
	script, ok := m.scripts[attempt]
	if !ok && m.hasFallback {
		script, ok = m.fallback, true
	}
	m.started = append(m.started, attempt)
	m.mu.Unlock()

	if !ok {
		return nil, errUnscripted
	}

	timer := time.NewTimer(script.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		m.mu.Lock()
		m.cancelled = append(m.cancelled, attempt)
		m.mu.Unlock()
		return nil, ctx.Err()
	case <-timer.C:
	}
	return script.value, script.err
}

// Started returns the attempt indexes that began executing, in start order.
func (m *MockExecutor) Started() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.started))
	copy(out, m.started)
	return out
}

// Cancelled returns the attempt indexes that observed cancellation.
func (m *MockExecutor) Cancelled() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.cancelled))
	copy(out, m.cancelled)
	return out
}
