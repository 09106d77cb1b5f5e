package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

func TestToolingClient_ExecuteAnonymous(t *testing.T) {
	t.Parallel()
	t.Run("successful execution", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, testBasePath()+"/tooling/executeAnonymous", request.URL.Path)
			assert.Equal(t, "System.debug('hi');", request.URL.Query().Get("anonymousBody"))

			_ = json.NewEncoder(writer).Encode(sfapi.ApexResult{
				Line:     -1,
				Column:   -1,
				Compiled: true,
				Success:  true,
			})
		}))
		defer server.Close()

		tooling := NewToolingClient(newTestDispatcher(server.URL), testBasePath())

		result, err := tooling.ExecuteAnonymous(context.Background(), "System.debug('hi');")
		require.NoError(t, err)
		assert.True(t, result.Compiled)
		assert.True(t, result.Success)
	})

	t.Run("compile failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_ = json.NewEncoder(writer).Encode(sfapi.ApexResult{
				Line:           1,
				Column:         14,
				Compiled:       false,
				Success:        false,
				CompileProblem: "Unexpected token '('.",
			})
		}))
		defer server.Close()

		tooling := NewToolingClient(newTestDispatcher(server.URL), testBasePath())

		result, err := tooling.ExecuteAnonymous(context.Background(), "System.debug((;")
		require.Error(t, err)

		apexErr := &sfapi.ApexExecutionError{}
		require.ErrorAs(t, err, &apexErr)
		assert.Equal(t, "Unexpected token '('.", apexErr.CompileError)
		assert.Equal(t, 1, apexErr.Line)

		// The full result accompanies the error.
		require.NotNil(t, result)
		assert.False(t, result.Compiled)
	})

	t.Run("runtime failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_ = json.NewEncoder(writer).Encode(sfapi.ApexResult{
				Line:             3,
				Compiled:         true,
				Success:          false,
				ExceptionMessage: "System.NullPointerException: Attempt to de-reference a null object",
			})
		}))
		defer server.Close()

		tooling := NewToolingClient(newTestDispatcher(server.URL), testBasePath())

		result, err := tooling.ExecuteAnonymous(context.Background(), "Account a; a.Name = 'x';")
		require.Error(t, err)

		apexErr := &sfapi.ApexExecutionError{}
		require.ErrorAs(t, err, &apexErr)
		assert.Contains(t, apexErr.RuntimeError, "NullPointerException")
		assert.Equal(t, 3, apexErr.Line)
		require.NotNil(t, result)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		tooling := NewToolingClient(newTestDispatcher("http://unused"), testBasePath())

		_, err := tooling.ExecuteAnonymous(context.Background(), "   ")
		require.ErrorIs(t, err, ErrEmptyApexBody)
	})
}
