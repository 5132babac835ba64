package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

func Test_ErrorMapper(t *testing.T) {
	router := New()
	router.RegisterErrorMapper(errNotFound, func(err error) JsonError {
		return JsonError{Code: http.StatusNotFound, Err: err.Error()}
	})

	tcs := []struct {
		name string
		err  error
		exp  JsonError
	}{
		{
			name: "sentinel",
			err:  errNotFound,
			exp:  JsonError{Code: http.StatusNotFound, Err: "not found"},
		},
		{
			name: "wrapped sentinel",
			err:  fmt.Errorf("GetChatByID: %w", errNotFound),
			exp:  JsonError{Code: http.StatusNotFound, Err: "GetChatByID: not found"},
		},
		{
			name: "unmapped",
			err:  errors.New("random error"),
			exp:  DefaultError,
		},
		{
			name: "api error",
			err:  JsonError{Code: http.StatusBadRequest, Err: "API Error"},
			exp:  JsonError{Code: http.StatusBadRequest, Err: "API Error"},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.exp, router.mapError(tc.err))
		})
	}
}

func TestMappersSharedWithSubRouters(t *testing.T) {
	router := New()
	router.MapStatus(errNotFound, http.StatusNotFound)

	router.Route("/api", func(r *Router) {
		r.Get("/thing", func(w http.ResponseWriter, r *http.Request) error {
			return fmt.Errorf("lookup: %w", errNotFound)
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/thing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body JsonError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "lookup: not found", body.Err)
}

func TestMessageMapper(t *testing.T) {
	router := New()
	router.RegisterErrorMapper(errNotFound, MessageMapper(http.StatusNotFound, func(error) string {
		return "thing not found"
	}))

	assert.Equal(t, JsonError{Code: http.StatusNotFound, Err: "thing not found"},
		router.mapError(fmt.Errorf("GetThing(secret-id): %w", errNotFound)))
}
