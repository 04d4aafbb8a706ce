package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashid/pkg/gateway"
	"slashid/pkg/gateway/gatewaytest"
	"slashid/pkg/problems"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestNewRejectsUnknownEnvironment(t *testing.T) {
	called := false
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("should not be called")
	})

	c, err := gateway.New("invalid_env", gateway.Credentials{OrganizationID: "org", APIKey: "key"}, gateway.WithDoer(doer))

	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), `invalid environment "invalid_env"`)
	assert.False(t, called)
}

func TestAPIURL(t *testing.T) {
	prod, err := gateway.New(gateway.Production, gateway.Credentials{})
	require.NoError(t, err)
	sandbox, err := gateway.New(gateway.Sandbox, gateway.Credentials{})
	require.NoError(t, err)

	assert.Equal(t, "https://api.slashid.com", prod.APIURL())
	assert.Equal(t, "https://api.sandbox.slashid.com", sandbox.APIURL())
	assert.Equal(t, "https://api.sandbox.slashid.com/organizations/webhooks/verification-jwks", sandbox.URL("/organizations/webhooks/verification-jwks"))
}

func TestCredentialsStringRedactsKey(t *testing.T) {
	s := gateway.Credentials{OrganizationID: "org", APIKey: "secret-key"}.String()
	assert.NotContains(t, s, "secret-key")
	assert.Contains(t, s, "org")
}

func TestCall(t *testing.T) {
	ctx := context.Background()
	person := `{"result":{"active":true,"person_id":"0659dd31-7e38-7d1e-8704-e3b8b6966176","region":"us-iowa","roles":[]}}`
	webhook := `{"result":{"description":"","id":"065e3a24-20c9-782c-9100-6bb43827c7ba","name":"example","target_url":"https://example.com/slashid/webhook","timeout":"0s"}}`
	webhookReq := map[string]string{"name": "example", "target_url": "https://example.com/slashid/webhook"}

	tests := []struct {
		name       string
		call       func(c *gateway.Client) (json.RawMessage, error)
		status     int
		body       string
		wantMethod string
		wantTarget string
		wantBody   string
		wantResult string
	}{
		{
			name: "GET without query",
			call: func(c *gateway.Client) (json.RawMessage, error) {
				return c.Get(ctx, "/persons/065e39a0-1796-7531-9204-400cf0ba82c6", nil)
			},
			status: 200, body: person,
			wantMethod: "GET", wantTarget: "/persons/065e39a0-1796-7531-9204-400cf0ba82c6",
			wantResult: `{"active":true,"person_id":"0659dd31-7e38-7d1e-8704-e3b8b6966176","region":"us-iowa","roles":[]}`,
		},
		{
			name: "GET with list query",
			call: func(c *gateway.Client) (json.RawMessage, error) {
				return c.Get(ctx, "/persons/065e39a0-1796-7531-9204-400cf0ba82c6", gateway.Query{"fields": []string{"handles", "groups", "attributes"}})
			},
			status: 200, body: person,
			wantMethod: "GET", wantTarget: "/persons/065e39a0-1796-7531-9204-400cf0ba82c6?fields=handles%2Cgroups%2Cattributes",
			wantResult: `{"active":true,"person_id":"0659dd31-7e38-7d1e-8704-e3b8b6966176","region":"us-iowa","roles":[]}`,
		},
		{
			name:   "POST",
			call:   func(c *gateway.Client) (json.RawMessage, error) { return c.Post(ctx, "/organizations/webhooks", webhookReq) },
			status: 201, body: webhook,
			wantMethod: "POST", wantTarget: "/organizations/webhooks",
			wantBody:   `{"name":"example","target_url":"https://example.com/slashid/webhook"}`,
			wantResult: `{"description":"","id":"065e3a24-20c9-782c-9100-6bb43827c7ba","name":"example","target_url":"https://example.com/slashid/webhook","timeout":"0s"}`,
		},
		{
			name:   "PATCH",
			call:   func(c *gateway.Client) (json.RawMessage, error) { return c.Patch(ctx, "/organizations/webhooks/1", webhookReq) },
			status: 200, body: webhook,
			wantMethod: "PATCH", wantTarget: "/organizations/webhooks/1",
			wantBody:   `{"name":"example","target_url":"https://example.com/slashid/webhook"}`,
			wantResult: `{"description":"","id":"065e3a24-20c9-782c-9100-6bb43827c7ba","name":"example","target_url":"https://example.com/slashid/webhook","timeout":"0s"}`,
		},
		{
			name: "PUT",
			call: func(c *gateway.Client) (json.RawMessage, error) {
				return c.Put(ctx, "/persons/1/consent/gdpr", map[string][]string{"consent_levels": {"none"}})
			},
			status: 200, body: `{"result":{"consents":[{"consent_level":"none"}]}}`,
			wantMethod: "PUT", wantTarget: "/persons/1/consent/gdpr",
			wantBody:   `{"consent_levels":["none"]}`,
			wantResult: `{"consents":[{"consent_level":"none"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := gatewaytest.New(t, gatewaytest.Response{Status: tt.status, Body: tt.body})
			res, err := tt.call(srv.Client())
			require.NoError(t, err)

			reqs := srv.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.wantMethod, reqs[0].Method)
			assert.Equal(t, tt.wantTarget, reqs[0].Target)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, string(reqs[0].Body))
			} else {
				assert.Empty(t, reqs[0].Body)
			}
			assert.JSONEq(t, tt.wantResult, string(res))
		})
	}
}

func TestCallSendsIdentityHeaders(t *testing.T) {
	srv := gatewaytest.New(t, gatewaytest.Response{Status: 200, Body: `{"result":[]}`})
	_, err := srv.Client().Get(context.Background(), "/organizations/webhooks", nil)
	require.NoError(t, err)

	h := srv.Requests()[0].Header
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, gatewaytest.OrganizationID, h.Get(gateway.HeaderOrgID))
	assert.Equal(t, gatewaytest.APIKey, h.Get(gateway.HeaderAPIKey))
}

func TestCallAbsentResult(t *testing.T) {
	srv := gatewaytest.New(t,
		gatewaytest.Response{Status: 204},
		gatewaytest.Response{Status: 200, Body: `{}`},
		gatewaytest.Response{Status: 200, Body: `{"result":null}`},
		gatewaytest.Response{Status: 200, Body: "OK", ContentType: "text/plain"},
	)
	c := srv.Client()
	for i := 0; i < 4; i++ {
		res, err := c.Delete(context.Background(), "/persons/1", nil)
		require.NoError(t, err)
		assert.Nil(t, res)
	}
}

func TestCallClassifiesErrors(t *testing.T) {
	t.Run("404 with error body", func(t *testing.T) {
		srv := gatewaytest.New(t, gatewaytest.Response{Status: 404, Body: `{"errors":[{"httpcode":404,"message":"webhook not found"}]}`})
		_, err := srv.Client().Get(context.Background(), "/organizations/webhooks/abc", nil)

		require.ErrorIs(t, err, problems.ErrIDNotFound)
		assert.Equal(t, "webhook not found at GET /organizations/webhooks/abc", err.Error())
		var se *gateway.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 404, se.StatusCode)
	})

	t.Run("404 with plain text body", func(t *testing.T) {
		srv := gatewaytest.New(t, gatewaytest.Response{Status: 404, Body: "404 page not found", ContentType: "text/plain"})
		_, err := srv.Client().Get(context.Background(), "/no/such/route", nil)

		require.ErrorIs(t, err, problems.ErrInvalidEndpoint)
	})

	t.Run("401", func(t *testing.T) {
		srv := gatewaytest.New(t, gatewaytest.Response{Status: 401, Body: `{"errors":[{"httpcode":401,"message":"nope"}]}`})
		_, err := srv.Client().Post(context.Background(), "/token/validate", map[string]string{"token": "x"})

		require.ErrorIs(t, err, problems.ErrUnauthorized)
		assert.NotContains(t, err.Error(), gatewaytest.APIKey)
	})

	t.Run("402 propagates the raw status error", func(t *testing.T) {
		srv := gatewaytest.New(t, gatewaytest.Response{Status: 402, Body: `{"errors":[{"httpcode":402,"message":"pay"}]}`})
		_, err := srv.Client().Get(context.Background(), "/persons", nil)

		var se *gateway.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 402, se.StatusCode)
		assert.Equal(t, problems.Unclassified, problems.KindOf(err))
	})

	t.Run("500 propagates the raw status error", func(t *testing.T) {
		srv := gatewaytest.New(t, gatewaytest.Response{Status: 500, Body: "oops", ContentType: "text/plain"})
		_, err := srv.Client().Get(context.Background(), "/persons", nil)

		var se *gateway.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "/persons", se.Target)
	})
}

func TestCallPropagatesTransportErrorUnchanged(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	c, err := gateway.New(gateway.Sandbox, gateway.Credentials{OrganizationID: "o", APIKey: "k"},
		gateway.WithDoer(doerFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, boom
		})))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/persons", nil)

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls, "no retry")
}

func TestUpload(t *testing.T) {
	srv := gatewaytest.New(t, gatewaytest.Response{Status: 200, Body: `{"result":{"successful_imports":1}}`})

	res, err := srv.Client().Upload(context.Background(), "/persons/bulk-import", "persons", "persons.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"successful_imports":1}`, string(res))

	req := srv.Requests()[0]
	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	mr := multipart.NewReader(strings.NewReader(string(req.Body)), params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "persons", part.FormName())
	assert.Equal(t, "persons.csv", part.FileName())
	content, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(content))
}

func TestFetchReturnsBareBody(t *testing.T) {
	srv := gatewaytest.New(t, gatewaytest.Response{Status: 200, Body: `{"keys":[]}`})

	body, err := srv.Client().Fetch(context.Background(), "/organizations/webhooks/verification-jwks")

	require.NoError(t, err)
	assert.JSONEq(t, `{"keys":[]}`, string(body))
}

func TestDecode(t *testing.T) {
	type hook struct {
		ID string `json:"id"`
	}
	got, err := gateway.Decode[hook]([]byte(`{"id":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID)

	empty, err := gateway.Decode[[]hook](nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestQueryEncode(t *testing.T) {
	q := gateway.Query{
		"fields": []string{"a", "b"},
		"limit":  10,
		"name":   "x y",
		"skip":   nil,
	}
	assert.Equal(t, "fields=a%2Cb&limit=10&name=x+y", q.Encode())
	assert.Equal(t, "", gateway.Query(nil).Encode())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := gateway.NewMetrics(reg)
	srv := gatewaytest.New(t,
		gatewaytest.Response{Status: 200, Body: `{}`},
		gatewaytest.Response{Status: 409, Body: `{"errors":[{"message":"dup"}]}`},
	)
	c := srv.Client(gateway.WithMetrics(m))

	_, _ = c.Get(context.Background(), "/a", nil)
	_, _ = c.Post(context.Background(), "/b", nil)

	n, err := testutil.GatherAndCount(reg, "slashid_api_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
