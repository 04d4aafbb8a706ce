package webhooks

import (
	"context"

	"slashid/pkg/gateway"
)

// GetTriggers returns the names of the triggers of webhook id.
func (r *Registry) GetTriggers(ctx context.Context, id string) ([]string, error) {
	raw, err := r.api.Get(ctx, triggersPath(id), nil)
	if err != nil {
		return nil, err
	}
	ts, err := gateway.Decode[[]trigger](raw)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, t.Name)
	}
	return names, nil
}

// SetTriggers makes the trigger set of webhook id equal to desired. Triggers
// present on both sides are left alone. It is not atomic: on error the set may
// be partially updated, and calling it again finishes the job.
func (r *Registry) SetTriggers(ctx context.Context, id string, desired []string) error {
	existing, err := r.GetTriggers(ctx, id)
	if err != nil {
		return err
	}
	remove, add := DiffTriggers(existing, desired)
	for _, name := range remove {
		if err := r.DeleteTrigger(ctx, id, name); err != nil {
			return err
		}
	}
	for _, name := range add {
		if err := r.AddTrigger(ctx, id, name); err != nil {
			return err
		}
	}
	return nil
}

// DiffTriggers computes the set difference between existing and desired.
// Order and duplicates in desired do not change the result set.
func DiffTriggers(existing, desired []string) (remove, add []string) {
	want := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		want[d] = struct{}{}
	}
	have := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		if _, dup := have[e]; dup {
			continue
		}
		have[e] = struct{}{}
		if _, ok := want[e]; !ok {
			remove = append(remove, e)
		}
	}
	for _, d := range desired {
		if _, ok := have[d]; ok {
			continue
		}
		have[d] = struct{}{}
		add = append(add, d)
	}
	return remove, add
}

func (r *Registry) AddTrigger(ctx context.Context, id, name string) error {
	t := newTrigger(name)
	if _, err := r.api.Post(ctx, triggersPath(id), t); err != nil {
		return err
	}
	r.log.Infow("webhook trigger added", "webhook", id, "trigger", name, "type", t.Type)
	return nil
}

func (r *Registry) DeleteTrigger(ctx context.Context, id, name string) error {
	t := newTrigger(name)
	q := gateway.Query{"trigger_type": string(t.Type), "trigger_name": t.Name}
	if _, err := r.api.Delete(ctx, triggersPath(id), q); err != nil {
		return err
	}
	r.log.Infow("webhook trigger removed", "webhook", id, "trigger", name, "type", t.Type)
	return nil
}
