// Package gatewaytest provides a scripted stand-in for the SlashID API for use
// in tests: responses are served in order and every request is recorded.
package gatewaytest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"slashid/pkg/gateway"
)

const (
	OrganizationID = "org_id"
	APIKey         = "api_key"
)

// Response is one scripted reply.
type Response struct {
	Status      int
	Body        string
	ContentType string // defaults to application/json
}

// Request is a recorded call.
type Request struct {
	Method string
	Target string
	Header http.Header
	Body   []byte
}

type Server struct {
	*httptest.Server

	t         *testing.T
	mu        sync.Mutex
	responses []Response
	history   []Request
}

// New starts a server that answers with responses in order. It is closed when
// the test ends.
func New(t *testing.T, responses ...Response) *Server {
	t.Helper()
	s := &Server{t: t, responses: responses}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.history = append(s.history, Request{
		Method: r.Method,
		Target: r.URL.RequestURI(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	if len(s.responses) == 0 {
		s.mu.Unlock()
		s.t.Errorf("unexpected request %s %s", r.Method, r.URL.RequestURI())
		http.Error(w, "no scripted response", http.StatusInternalServerError)
		return
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	s.mu.Unlock()

	ct := resp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}

// Enqueue appends more scripted responses.
func (s *Server) Enqueue(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Requests returns a copy of the recorded calls.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.history...)
}

// Remaining reports how many scripted responses were not consumed.
func (s *Server) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

// Client returns a gateway client pointed at the server.
func (s *Server) Client(opts ...gateway.Option) *gateway.Client {
	s.t.Helper()
	opts = append([]gateway.Option{
		gateway.WithBaseURL(s.URL),
		gateway.WithDoer(s.Server.Client()),
	}, opts...)
	c, err := gateway.New(gateway.Production, gateway.Credentials{
		OrganizationID: OrganizationID,
		APIKey:         APIKey,
	}, opts...)
	require.NoError(s.t, err)
	return c
}
