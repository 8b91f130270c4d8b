package sculptor

import (
	"context"
	"sync"
)

// ScriptedTransport is a deterministic Transport for tests and examples. It
// records every request and answers with the supplied function.
type ScriptedTransport struct {
	mu       sync.Mutex
	requests []*Request
	respond  func(ctx context.Context, req *Request, call int) (*Completion, error)
}

// NewScriptedTransport returns a transport that answers call n (0-based,
// counted across all items) with respond.
func NewScriptedTransport(respond func(ctx context.Context, req *Request, call int) (*Completion, error)) *ScriptedTransport {
	return &ScriptedTransport{respond: respond}
}

// NewStaticTransport always answers with text.
func NewStaticTransport(text string) *ScriptedTransport {
	return NewScriptedTransport(func(context.Context, *Request, int) (*Completion, error) {
		return &Completion{Text: text}, nil
	})
}

// Complete implements Transport.
func (s *ScriptedTransport) Complete(ctx context.Context, req *Request) (*Completion, error) {
	s.mu.Lock()
	call := len(s.requests)
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.respond(ctx, req, call)
}

// Calls reports how many requests were made.
func (s *ScriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the recorded requests in call order.
func (s *ScriptedTransport) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}
