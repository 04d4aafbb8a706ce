// Package webhooks manages SlashID webhook registrations and their triggers,
// and verifies the signed calls SlashID sends to them.
package webhooks

// Definition is a webhook as stored by SlashID. ID is assigned by the server.
type Definition struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	TargetURL     string              `json:"target_url"`
	CustomHeaders map[string][]string `json:"custom_headers,omitempty"`
	Timeout       string              `json:"timeout"`
}

// Options holds the optional fields of a registration. Nil fields are not
// sent, so an update keeps their current values.
type Options struct {
	Description   *string             `json:"description,omitempty"`
	CustomHeaders map[string][]string `json:"custom_headers,omitempty"`
	Timeout       *string             `json:"timeout,omitempty"` // e.g. "30s"
}

type registerRequest struct {
	TargetURL string `json:"target_url"`
	Name      string `json:"name"`
	Options
}

// TriggerType is derived from the trigger name, never chosen by callers.
type TriggerType string

const (
	SyncHook TriggerType = "sync_hook"
	Event    TriggerType = "event"
)

// TokenMinted is the only synchronous hook. It runs before a token is issued
// and may add claims to it.
const TokenMinted = "token_minted"

// TypeOf returns the type of the trigger called name.
func TypeOf(name string) TriggerType {
	if name == TokenMinted {
		return SyncHook
	}
	return Event
}

type trigger struct {
	Type TriggerType `json:"trigger_type"`
	Name string      `json:"trigger_name"`
}

func newTrigger(name string) trigger { return trigger{Type: TypeOf(name), Name: name} }
