// Package receiver serves the endpoint SlashID delivers webhook calls to.
// Calls are verified, counted and dispatched to a handler per trigger.
package receiver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"slashid/pkg/keyset"
	"slashid/pkg/middleware"
	"slashid/pkg/webhooks"
)

// Call is a verified webhook call.
type Call struct {
	TriggerName string
	TriggerType webhooks.TriggerType
	WebhookID   string
	Content     map[string]any // trigger_content
	Claims      map[string]any
}

// Handler processes one call. For sync hooks (token_minted) the result is
// sent back to SlashID as JSON; for events it is ignored.
type Handler func(ctx context.Context, call Call) (any, error)

type App struct {
	router   chi.Router
	log      *zap.SugaredLogger
	calls    *prometheus.CounterVec
	mu       sync.RWMutex
	handlers map[string]Handler
}

type Options struct {
	Path   string // defaults to /slashid/webhook
	Verify []webhooks.VerifyOption
}

// New wires the routes. reg receives the call counter and backs /metrics.
func New(v middleware.CallVerifier, cache keyset.Cache, reg *prometheus.Registry, log *zap.SugaredLogger, opts Options) *App {
	if opts.Path == "" {
		opts.Path = "/slashid/webhook"
	}
	a := &App{
		log:      log,
		handlers: map[string]Handler{},
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slashid",
			Subsystem: "webhook",
			Name:      "calls_total",
			Help:      "Verified webhook calls by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
	}
	reg.MustRegister(a.calls)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("slashid-webhook-receiver", log))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	r.With(middleware.WebhookCall(v, cache, log, opts.Verify...)).Post(opts.Path, a.dispatch)
	a.router = r
	return a
}

func (a *App) Handler() http.Handler { return a.router }

// On registers h for trigger, replacing any previous handler.
func (a *App) On(trigger string, h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[trigger] = h
}

func (a *App) dispatch(w http.ResponseWriter, r *http.Request) {
	call := callFrom(middleware.ClaimsFrom(r.Context()))
	reqid := middleware.RequestIDFrom(r.Context())

	a.mu.RLock()
	h, ok := a.handlers[call.TriggerName]
	a.mu.RUnlock()
	if !ok {
		a.calls.WithLabelValues(call.TriggerName, "unhandled").Inc()
		a.log.Debugw("webhook call without handler", "trigger", call.TriggerName, "reqid", reqid)
		a.respond(w, call, nil)
		return
	}

	res, err := h(r.Context(), call)
	if err != nil {
		a.calls.WithLabelValues(call.TriggerName, "error").Inc()
		a.log.Errorw("webhook handler failed", "trigger", call.TriggerName, "webhook", call.WebhookID, "err", err, "reqid", reqid)
		http.Error(w, "handler failed", http.StatusInternalServerError)
		return
	}
	a.calls.WithLabelValues(call.TriggerName, "handled").Inc()
	a.log.Infow("webhook call handled", "trigger", call.TriggerName, "webhook", call.WebhookID, "reqid", reqid)
	a.respond(w, call, res)
}

func (a *App) respond(w http.ResponseWriter, call Call, res any) {
	if call.TriggerType != webhooks.SyncHook {
		w.WriteHeader(http.StatusOK)
		return
	}
	if res == nil {
		res = map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func callFrom(claims map[string]any) Call {
	c := Call{Claims: claims}
	c.TriggerName, _ = claims["trigger_name"].(string)
	c.WebhookID, _ = claims["webhook_id"].(string)
	c.Content, _ = claims["trigger_content"].(map[string]any)
	c.TriggerType = webhooks.TypeOf(c.TriggerName)
	return c
}
