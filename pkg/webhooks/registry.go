package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"slashid/pkg/gateway"
)

const webhooksPath = "organizations/webhooks"

// ErrNotFound is returned by DeleteByURL when no webhook has the URL. It is
// local to this package and distinct from problems.ErrIDNotFound, which comes
// from the API.
var ErrNotFound = errors.New("webhook not found")

// API is the subset of gateway.Client the registry needs.
type API interface {
	Get(ctx context.Context, path string, query gateway.Query) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Patch(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string, query gateway.Query) (json.RawMessage, error)
	OrganizationID() string
}

// Registry keeps no state of its own; every call reads the remote
// registrations.
type Registry struct {
	api API
	log *zap.SugaredLogger
}

func NewRegistry(api API, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{api: api, log: log}
}

func webhookPath(id string) string  { return webhooksPath + "/" + url.PathEscape(id) }
func triggersPath(id string) string { return webhookPath(id) + "/triggers" }

// FindAll lists every webhook of the organization.
func (r *Registry) FindAll(ctx context.Context) ([]Definition, error) {
	raw, err := r.api.Get(ctx, webhooksPath, nil)
	if err != nil {
		return nil, err
	}
	return gateway.Decode[[]Definition](raw)
}

// FindByID fails with problems.ErrIDNotFound if id does not exist.
func (r *Registry) FindByID(ctx context.Context, id string) (Definition, error) {
	raw, err := r.api.Get(ctx, webhookPath(id), nil)
	if err != nil {
		return Definition{}, err
	}
	return gateway.Decode[Definition](raw)
}

// FindByURL returns the first webhook whose target URL equals targetURL, or
// nil if there is none.
func (r *Registry) FindByURL(ctx context.Context, targetURL string) (*Definition, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].TargetURL == targetURL {
			return &all[i], nil
		}
	}
	return nil, nil
}

// Register creates the webhook for targetURL, or updates it if one exists,
// then reconciles its triggers to exactly triggers. An update only sends name,
// the URL and the non-nil fields of opts.
func (r *Registry) Register(ctx context.Context, targetURL, name string, triggers []string, opts Options) (Definition, error) {
	existing, err := r.FindByURL(ctx, targetURL)
	if err != nil {
		return Definition{}, err
	}
	req := registerRequest{TargetURL: targetURL, Name: name, Options: opts}

	var raw json.RawMessage
	if existing != nil {
		raw, err = r.api.Patch(ctx, webhookPath(existing.ID), req)
	} else {
		raw, err = r.api.Post(ctx, webhooksPath, req)
	}
	if err != nil {
		return Definition{}, err
	}
	def, err := gateway.Decode[Definition](raw)
	if err != nil {
		return Definition{}, err
	}
	if def.ID == "" && existing != nil {
		def.ID = existing.ID
	}
	if def.ID == "" {
		return Definition{}, fmt.Errorf("registering webhook %q: response has no id", targetURL)
	}
	r.log.Infow("webhook registered", "id", def.ID, "url", targetURL, "updated", existing != nil)

	if err := r.SetTriggers(ctx, def.ID, triggers); err != nil {
		return def, err
	}
	return def, nil
}

func (r *Registry) DeleteByID(ctx context.Context, id string) error {
	_, err := r.api.Delete(ctx, webhookPath(id), nil)
	return err
}

// DeleteByURL deletes the first webhook with targetURL. It fails with
// ErrNotFound if there is none.
func (r *Registry) DeleteByURL(ctx context.Context, targetURL string) error {
	def, err := r.FindByURL(ctx, targetURL)
	if err != nil {
		return err
	}
	if def == nil {
		return fmt.Errorf("%w: no webhook in organization %s for url %q", ErrNotFound, r.api.OrganizationID(), targetURL)
	}
	return r.DeleteByID(ctx, def.ID)
}
