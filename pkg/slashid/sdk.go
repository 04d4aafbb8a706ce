// Package slashid is the entry point of the SDK: one SDK value per
// organization and environment, exposing every API component over a shared
// gateway client.
package slashid

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"slashid/pkg/config"
	"slashid/pkg/gateway"
	"slashid/pkg/migration"
	"slashid/pkg/persons"
	"slashid/pkg/tokens"
	"slashid/pkg/webhooks"
)

type SDK struct {
	api       *gateway.Client
	tokens    *tokens.Verifier
	webhooks  *webhooks.Registry
	calls     *webhooks.CallVerifier
	persons   *persons.Client
	migration *migration.Exporter
}

// New fails if env is not a known environment. The gateway options are
// passed through, e.g. gateway.WithLogger or gateway.WithDoer.
func New(env gateway.Environment, orgID, apiKey string, opts ...gateway.Option) (*SDK, error) {
	api, err := gateway.New(env, gateway.Credentials{OrganizationID: orgID, APIKey: apiKey}, opts...)
	if err != nil {
		return nil, err
	}
	return fromClient(api, zap.NewNop().Sugar()), nil
}

// FromConfig builds an SDK from loaded configuration. reg may be nil to skip
// metrics.
func FromConfig(cfg config.Config, log *zap.SugaredLogger, reg prometheus.Registerer) (*SDK, error) {
	opts := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithTimeout(cfg.HTTPTimeout),
	}
	if reg != nil {
		opts = append(opts, gateway.WithMetrics(gateway.NewMetrics(reg)))
	}
	if cfg.APIBaseURL != "" {
		opts = append(opts, gateway.WithBaseURL(cfg.APIBaseURL))
	}
	api, err := gateway.New(gateway.Environment(cfg.Environment), gateway.Credentials{
		OrganizationID: cfg.OrganizationID,
		APIKey:         cfg.APIKey,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return fromClient(api, log), nil
}

func fromClient(api *gateway.Client, log *zap.SugaredLogger) *SDK {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SDK{
		api:       api,
		tokens:    tokens.NewVerifier(api),
		webhooks:  webhooks.NewRegistry(api, log.Named("webhooks")),
		calls:     webhooks.NewCallVerifier(api, webhooks.WithVerifierLogger(log.Named("webhooks"))),
		persons:   persons.NewClient(api),
		migration: migration.NewExporter(api, log.Named("migration")),
	}
}

func (s *SDK) Environment() gateway.Environment { return s.api.Environment() }
func (s *SDK) OrganizationID() string           { return s.api.OrganizationID() }
func (s *SDK) APIURL() string                   { return s.api.APIURL() }

// API exposes the gateway for endpoints without a dedicated component.
func (s *SDK) API() *gateway.Client { return s.api }

func (s *SDK) Tokens() *tokens.Verifier             { return s.tokens }
func (s *SDK) Webhooks() *webhooks.Registry         { return s.webhooks }
func (s *SDK) WebhookCalls() *webhooks.CallVerifier { return s.calls }
func (s *SDK) Persons() *persons.Client             { return s.persons }
func (s *SDK) Migration() *migration.Exporter       { return s.migration }
