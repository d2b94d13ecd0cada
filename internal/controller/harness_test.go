package controller

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"salas/internal/api"
	"salas/internal/model"
	"salas/internal/session"
	"salas/internal/view/viewtest"
)

var (
	adminUser = model.User{Participant: model.Participant{
		CI: "11111111", FirstName: "Ana", LastName: "Admin", Type: "administrativo",
	}}
	studentUser = model.User{Participant: model.Participant{
		CI: "12345678", FirstName: "Matías", LastName: "Sastre", Type: "estudiante",
	}}
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type reply struct {
	status int
	body   string
}

type harness struct {
	t       *testing.T
	mu      sync.Mutex
	reqs    []recorded
	routes  map[string]reply
	view    *viewtest.Recorder
	session *session.Session
	deps    Deps
}

func newHarness(t *testing.T, user *model.User) *harness {
	t.Helper()
	h := &harness{t: t, routes: map[string]reply{}, view: &viewtest.Recorder{}}
	srv := httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(srv.Close)

	client := api.New(srv.URL, "", time.Second, zerolog.Nop())
	h.session = session.New(session.NewPolicy(nil), nil, zerolog.Nop())
	if user != nil {
		h.session.Save(*user)
	}
	h.deps = Deps{
		API:     client,
		Session: h.session,
		View:    h.view,
		Lookups: NewLookups(client, h.view),
		Logger:  zerolog.Nop(),
	}
	return h
}

func (h *harness) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.reqs = append(h.reqs, recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	rep, ok := h.routes[r.Method+" "+r.URL.Path]
	h.mu.Unlock()
	if !ok {
		rep = reply{status: http.StatusOK, body: "{}"}
		if r.Method == http.MethodGet {
			rep.body = "[]"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (h *harness) route(method, path string, status int, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes[method+" "+path] = reply{status: status, body: body}
}

func (h *harness) requests(method string) []recorded {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []recorded
	for _, r := range h.reqs {
		if method == "" || r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

func (h *harness) mutations() []recorded {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []recorded
	for _, r := range h.reqs {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

func (h *harness) last() recorded {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reqs) == 0 {
		h.t.Fatal("no request recorded")
	}
	return h.reqs[len(h.reqs)-1]
}
