package sfclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/fivetwenty-io/sfapi/pkg/sfclient"
)

func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("rejects nil config", func(t *testing.T) {
		t.Parallel()

		_, err := sfclient.New(nil)
		require.ErrorIs(t, err, sfapi.ErrConfigRequired)
	})

	t.Run("creates client with config", func(t *testing.T) {
		t.Parallel()

		client, err := sfclient.New(&sfapi.Config{
			Orgs: []sfapi.OrgConfig{{
				Alias:  "production",
				Domain: "login",
				Credentials: &sfapi.UsernamePasswordCredentials{
					Username: "user@example.com",
					Password: "secret",
				},
			}},
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
		assert.Equal(t, []string{"production"}, client.Orgs())
	})

	t.Run("normalizes org domains", func(t *testing.T) {
		t.Parallel()

		config := &sfapi.Config{
			Orgs: []sfapi.OrgConfig{{
				Alias:  "production",
				Domain: "https://acme.my.salesforce.com/",
				Credentials: &sfapi.UsernamePasswordCredentials{
					Username: "user@example.com",
					Password: "secret",
				},
			}},
		}

		client, err := sfclient.New(config)
		require.NoError(t, err)

		defer func() { _ = client.Close() }()

		assert.Equal(t, "acme.my.salesforce.com", config.Orgs[0].Domain)
	})
}

func TestNewWithCredentials(t *testing.T) {
	t.Parallel()

	client, err := sfclient.NewWithCredentials("test", &sfapi.UsernamePasswordCredentials{
		Username: "user@example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{sfclient.DefaultOrgAlias}, client.Orgs())

	org, err := client.DefaultOrg()
	require.NoError(t, err)
	assert.Equal(t, sfclient.DefaultOrgAlias, org.Alias())
}

func TestNewWithPassword(t *testing.T) {
	t.Parallel()

	client, err := sfclient.NewWithPassword("login", "user@example.com", "secret")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewWithJWT(t *testing.T) {
	t.Parallel()

	// The key is parsed lazily, on the first exchange.
	client, err := sfclient.NewWithJWT("acme.my.salesforce.com", "connected-app", "user@example.com", []byte("pem"))
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = sfclient.NewWithJWT("acme.my.salesforce.com", "", "user@example.com", []byte("pem"))
	require.ErrorIs(t, err, sfapi.ErrJWTIdentityRequired)
}

func TestNewWithRefreshToken(t *testing.T) {
	t.Parallel()

	client, err := sfclient.NewWithRefreshToken("login", "connected-app", "app-secret", "refresh-token")
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = sfclient.NewWithRefreshToken("login", "connected-app", "app-secret", "")
	require.ErrorIs(t, err, sfapi.ErrAuthCodeOrRefreshTokenRequired)
}

func TestClientEndToEnd(t *testing.T) {
	// t.Setenv forbids t.Parallel.
	t.Setenv("SFAPI_DEV_MODE", "true")

	var server *httptest.Server

	server = httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/services/oauth2/token":
			_ = request.ParseForm()
			assert.Equal(t, "password", request.PostForm.Get("grant_type"))
			assert.Equal(t, "it@example.com", request.PostForm.Get("username"))
			assert.Equal(t, "hunter2SECTOK", request.PostForm.Get("password"))
			assert.Equal(t, "connected-app", request.PostForm.Get("client_id"))

			_ = json.NewEncoder(writer).Encode(map[string]string{
				"access_token": "e2e-token",
				"instance_url": server.URL,
				"token_type":   "Bearer",
				"issued_at":    "1718000000000",
			})
		case "/services/data/v59.0/query":
			assert.Equal(t, "Bearer e2e-token", request.Header.Get("Authorization"))

			_ = json.NewEncoder(writer).Encode(sfapi.QueryResult{
				TotalSize: 1,
				Done:      true,
				Records:   []map[string]interface{}{{"Name": "Acme"}},
			})
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	domain := strings.TrimPrefix(server.URL, "https://")

	client, err := sfclient.New(&sfapi.Config{
		Orgs: []sfapi.OrgConfig{{
			Alias:  "e2e",
			Domain: domain,
			Credentials: &sfapi.UsernamePasswordCredentials{
				Username:      "it@example.com",
				Password:      "hunter2",
				SecurityToken: "SECTOK",
				ClientID:      "connected-app",
				ClientSecret:  "app-secret",
			},
		}},
		SkipTLSVerify: true,
	})
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	org, err := client.Org("e2e")
	require.NoError(t, err)

	result, err := org.Query().Execute(context.Background(), "SELECT Id, Name FROM Account")
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalSize)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Acme", result.Records[0]["Name"])
}
