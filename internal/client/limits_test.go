package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsClient_Get(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, testBasePath()+"/limits", request.URL.Path)

		_, _ = writer.Write([]byte(`{
			"DailyApiRequests": {"Max": 100000, "Remaining": 97234},
			"DataStorageMB": {"Max": 5120, "Remaining": 4381}
		}`))
	}))
	defer server.Close()

	limits := NewLimitsClient(newTestDispatcher(server.URL), testBasePath())

	got, err := limits.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100000, got["DailyApiRequests"].Max)
	assert.Equal(t, 97234, got["DailyApiRequests"].Remaining)
	assert.Equal(t, 4381, got["DataStorageMB"].Remaining)
}
