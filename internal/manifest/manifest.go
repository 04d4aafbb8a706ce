// Package manifest reads webhook manifests and applies them to an
// organization. A manifest lists every webhook the organization should have,
// with its triggers.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"slashid/pkg/webhooks"
)

// Webhook is one manifest entry.
type Webhook struct {
	Name          string              `yaml:"name"`
	URL           string              `yaml:"url"`
	Description   *string             `yaml:"description"`
	Timeout       *string             `yaml:"timeout"`
	CustomHeaders map[string][]string `yaml:"custom_headers"`
	Triggers      []string            `yaml:"triggers"`
}

// Manifest is a parsed webhook manifest. With Prune set, Apply also deletes
// webhooks whose URL is not listed.
type Manifest struct {
	Webhooks []Webhook `yaml:"webhooks"`
	Prune    bool      `yaml:"prune"`
}

// Load reads a YAML or JSON manifest and validates it.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every entry. URLs must be absolute http(s) and unique.
func (m *Manifest) Validate() error {
	if len(m.Webhooks) == 0 && !m.Prune {
		return errors.New("manifest has no webhooks defined")
	}
	seen := map[string]bool{}
	for i, w := range m.Webhooks {
		if w.Name == "" {
			return fmt.Errorf("webhook %d: name is required", i)
		}
		u, err := url.Parse(w.URL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("webhook %q: url must be an absolute http(s) url, got %q", w.Name, w.URL)
		}
		if seen[w.URL] {
			return fmt.Errorf("webhook %q: url %s is listed twice", w.Name, w.URL)
		}
		seen[w.URL] = true
		if w.Timeout != nil {
			if _, err := time.ParseDuration(*w.Timeout); err != nil {
				return fmt.Errorf("webhook %q: invalid timeout %q", w.Name, *w.Timeout)
			}
		}
	}
	return nil
}

// Registrar is satisfied by *webhooks.Registry.
type Registrar interface {
	FindAll(ctx context.Context) ([]webhooks.Definition, error)
	Register(ctx context.Context, targetURL, name string, triggers []string, opts webhooks.Options) (webhooks.Definition, error)
	DeleteByID(ctx context.Context, id string) error
}

type Report struct {
	Registered []webhooks.Definition
	Deleted    []webhooks.Definition
}

// Apply registers every webhook in m and reconciles its triggers. It stops at
// the first failure; running it again picks up where it left off.
func Apply(ctx context.Context, reg Registrar, m *Manifest, log *zap.SugaredLogger) (Report, error) {
	var rep Report
	for _, w := range m.Webhooks {
		def, err := reg.Register(ctx, w.URL, w.Name, w.Triggers, webhooks.Options{
			Description:   w.Description,
			CustomHeaders: w.CustomHeaders,
			Timeout:       w.Timeout,
		})
		if err != nil {
			return rep, fmt.Errorf("registering %s: %w", w.URL, err)
		}
		log.Infow("webhook applied", "name", w.Name, "id", def.ID, "triggers", len(w.Triggers))
		rep.Registered = append(rep.Registered, def)
	}
	if !m.Prune {
		return rep, nil
	}

	listed := make(map[string]bool, len(m.Webhooks))
	for _, w := range m.Webhooks {
		listed[w.URL] = true
	}
	all, err := reg.FindAll(ctx)
	if err != nil {
		return rep, fmt.Errorf("listing webhooks: %w", err)
	}
	for _, def := range all {
		if listed[def.TargetURL] {
			continue
		}
		if err := reg.DeleteByID(ctx, def.ID); err != nil {
			return rep, fmt.Errorf("pruning %s: %w", def.TargetURL, err)
		}
		log.Infow("webhook pruned", "name", def.Name, "id", def.ID, "url", def.TargetURL)
		rep.Deleted = append(rep.Deleted, def)
	}
	return rep, nil
}
