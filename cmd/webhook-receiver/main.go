// cmd/webhook-receiver/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"slashid/internal/receiver"
	"slashid/pkg/config"
	"slashid/pkg/db"
	"slashid/pkg/keyset"
	"slashid/pkg/logger"
	"slashid/pkg/slashid"
	"slashid/pkg/webhooks"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sdk, err := slashid.FromConfig(cfg, log, reg)
	if err != nil {
		log.Fatalw("sdk", "err", err)
	}

	verify := []webhooks.VerifyOption{webhooks.WithTTL(cfg.JWKSTTL)}
	if !cfg.JWKSRateLimited {
		verify = append(verify, webhooks.WithoutRateLimit())
	}

	app := receiver.New(sdk.WebhookCalls(), keyCache(cfg, log), reg, log, receiver.Options{
		Path:   cfg.ReceiverPath,
		Verify: verify,
	})
	app.On(webhooks.TokenMinted, func(_ context.Context, c receiver.Call) (any, error) {
		log.Infow("token minted", "webhook", c.WebhookID, "person", c.Content["person_id"])
		return nil, nil
	})
	for _, event := range []string{"PersonCreated_v1", "PersonDeleted_v1", "AuthenticationSucceeded_v1"} {
		app.On(event, func(_ context.Context, c receiver.Call) (any, error) {
			log.Infow("event received", "trigger", c.TriggerName, "webhook", c.WebhookID)
			return nil, nil
		})
	}

	srv := &http.Server{Addr: cfg.ReceiverAddr, Handler: app.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("webhook-receiver listening", "addr", cfg.ReceiverAddr, "path", cfg.ReceiverPath,
			"environment", sdk.Environment(), "org", sdk.OrganizationID())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("webhook-receiver stopped")
}

// keyCache prefers redis, then postgres, then process memory.
func keyCache(cfg config.Config, log *zap.SugaredLogger) keyset.Cache {
	if rdb := db.MustRedis(cfg, log); rdb != nil {
		return keyset.NewRedis(rdb)
	}
	if pool := db.MustConnect(cfg, log); pool != nil {
		pg := keyset.NewPostgres(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalw("schema", "err", err)
		}
		return pg
	}
	log.Infow("caching webhook keys in memory")
	return keyset.NewMemory()
}
