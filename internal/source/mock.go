package source

import "context"

// MockSource is a Source whose points are injected directly by a test via
// Push/Finish, with no background goroutine or I/O of its own.
type MockSource struct {
	*Base
	stopped bool
}

// NewMockSource returns an empty MockSource.
func NewMockSource() *MockSource {
	return &MockSource{Base: NewBase()}
}

// Finish marks the source done, as if the tracked activity ended.
func (m *MockSource) Finish() {
	m.MarkDone()
	m.CloseObserver()
}

// Stop records that Stop was called and marks the source done.
func (m *MockSource) Stop(ctx context.Context) error {
	m.stopped = true
	m.MarkDone()
	return nil
}

// Stopped reports whether Stop has been called.
func (m *MockSource) Stopped() bool {
	return m.stopped
}

// Run blocks until ctx is canceled or the source is marked done; a
// MockSource drives no I/O of its own, so there's nothing to do but wait.
func (m *MockSource) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.Done():
		return nil
	}
}
