package awtrix

import (
	"context"
	"sync"
)

func CreateTestScreenReader(frame Frame) *TestScreenReader {
	return &TestScreenReader{frame: frame}
}

// TestScreenReader is an in-memory ScreenReader with injectable failures.
type TestScreenReader struct {
	mu          sync.Mutex
	frame       Frame
	err         error
	probeErr    error
	screenCalls int
	probeCalls  int
}

func (r *TestScreenReader) GetScreen(_ context.Context) (Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screenCalls++
	if r.err != nil {
		return nil, r.err
	}
	return r.frame, nil
}

func (r *TestScreenReader) Probe(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probeCalls++
	return r.probeErr
}

// Fail makes both GetScreen and Probe return err until Recover is called.
func (r *TestScreenReader) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.probeErr = err
}

func (r *TestScreenReader) Recover() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = nil
	r.probeErr = nil
}

func (r *TestScreenReader) SetFrame(frame Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame = frame
}

func (r *TestScreenReader) ScreenCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screenCalls
}

func (r *TestScreenReader) ProbeCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.probeCalls
}
