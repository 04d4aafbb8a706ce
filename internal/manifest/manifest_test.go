package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slashid/pkg/logger"
	"slashid/pkg/webhooks"
)

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhooks.yaml")
	content := `
webhooks:
  - name: prod_webhook
    url: https://example.com/slashid/webhook
    description: Person lifecycle
    timeout: 30s
    custom_headers:
      X-Extra-Check: ["Value for the header"]
    triggers: [PersonCreated_v1, token_minted]
prune: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := Load(path)
	require.NoError(t, err)

	require.Len(t, m.Webhooks, 1)
	w := m.Webhooks[0]
	assert.Equal(t, "prod_webhook", w.Name)
	assert.Equal(t, "https://example.com/slashid/webhook", w.URL)
	require.NotNil(t, w.Description)
	assert.Equal(t, "Person lifecycle", *w.Description)
	require.NotNil(t, w.Timeout)
	assert.Equal(t, "30s", *w.Timeout)
	assert.Equal(t, map[string][]string{"X-Extra-Check": {"Value for the header"}}, w.CustomHeaders)
	assert.Equal(t, []string{"PersonCreated_v1", "token_minted"}, w.Triggers)
	assert.True(t, m.Prune)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhooks.json")
	content := `{"webhooks": [{"name": "example", "url": "https://example.com/hook", "triggers": ["PersonDeleted_v1"]}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := Load(path)
	require.NoError(t, err)

	require.Len(t, m.Webhooks, 1)
	assert.Nil(t, m.Webhooks[0].Description, "unset options stay nil")
	assert.False(t, m.Prune)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading manifest")
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", `webhooks: []`, "no webhooks"},
		{"unknown field", "webhooks:\n  - name: a\n    url: https://x.com\n    trigers: [a]\n", "parsing manifest"},
		{"missing name", "webhooks:\n  - url: https://x.com\n", "name is required"},
		{"relative url", "webhooks:\n  - name: a\n    url: /hook\n", "absolute http(s) url"},
		{"bad scheme", "webhooks:\n  - name: a\n    url: ftp://x.com/hook\n", "absolute http(s) url"},
		{"duplicate url", "webhooks:\n  - name: a\n    url: https://x.com\n  - name: b\n    url: https://x.com\n", "listed twice"},
		{"bad timeout", "webhooks:\n  - name: a\n    url: https://x.com\n    timeout: soon\n", "invalid timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) FindAll(ctx context.Context) ([]webhooks.Definition, error) {
	args := m.Called()
	defs, _ := args.Get(0).([]webhooks.Definition)
	return defs, args.Error(1)
}

func (m *mockRegistrar) Register(ctx context.Context, targetURL, name string, triggers []string, opts webhooks.Options) (webhooks.Definition, error) {
	args := m.Called(targetURL, name, triggers, opts)
	return args.Get(0).(webhooks.Definition), args.Error(1)
}

func (m *mockRegistrar) DeleteByID(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func TestApply(t *testing.T) {
	timeout := "10s"
	m := &Manifest{Webhooks: []Webhook{
		{Name: "a", URL: "https://x.com/a", Timeout: &timeout, Triggers: []string{"PersonCreated_v1"}},
		{Name: "b", URL: "https://x.com/b"},
	}}
	reg := &mockRegistrar{}
	reg.On("Register", "https://x.com/a", "a", []string{"PersonCreated_v1"}, webhooks.Options{Timeout: &timeout}).
		Return(webhooks.Definition{ID: "1", Name: "a", TargetURL: "https://x.com/a"}, nil).Once()
	reg.On("Register", "https://x.com/b", "b", []string(nil), webhooks.Options{}).
		Return(webhooks.Definition{ID: "2", Name: "b", TargetURL: "https://x.com/b"}, nil).Once()

	rep, err := Apply(context.Background(), reg, m, logger.Nop())

	require.NoError(t, err)
	assert.Len(t, rep.Registered, 2)
	assert.Empty(t, rep.Deleted)
	reg.AssertExpectations(t)
	reg.AssertNotCalled(t, "FindAll")
}

func TestApplyPrune(t *testing.T) {
	m := &Manifest{Prune: true, Webhooks: []Webhook{{Name: "a", URL: "https://x.com/a"}}}
	reg := &mockRegistrar{}
	reg.On("Register", "https://x.com/a", "a", []string(nil), webhooks.Options{}).
		Return(webhooks.Definition{ID: "1", TargetURL: "https://x.com/a"}, nil)
	reg.On("FindAll").Return([]webhooks.Definition{
		{ID: "1", TargetURL: "https://x.com/a"},
		{ID: "9", Name: "stale", TargetURL: "https://x.com/old"},
	}, nil)
	reg.On("DeleteByID", "9").Return(nil).Once()

	rep, err := Apply(context.Background(), reg, m, logger.Nop())

	require.NoError(t, err)
	require.Len(t, rep.Deleted, 1)
	assert.Equal(t, "9", rep.Deleted[0].ID)
	reg.AssertExpectations(t)
}

func TestApplyStopsOnFailure(t *testing.T) {
	m := &Manifest{Webhooks: []Webhook{{Name: "a", URL: "https://x.com/a"}, {Name: "b", URL: "https://x.com/b"}}}
	reg := &mockRegistrar{}
	reg.On("Register", "https://x.com/a", "a", []string(nil), webhooks.Options{}).
		Return(webhooks.Definition{}, errors.New("boom"))

	_, err := Apply(context.Background(), reg, m, logger.Nop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "registering https://x.com/a")
	reg.AssertNumberOfCalls(t, "Register", 1)
}
