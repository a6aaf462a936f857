package environment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/environment"
)

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := environment.WithContext(context.Background(), environment.Production)
	assert.Equal(t, environment.Production, environment.FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, environment.Environment(""), environment.FromContext(context.Background()))
	assert.Equal(t, environment.Environment(""), environment.FromContext(nil)) //nolint:staticcheck
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := environment.LoggerExtractor()

	attr, ok := extract(environment.WithContext(context.Background(), environment.Staging))
	require.True(t, ok)
	assert.Equal(t, "env", attr.Key)
	assert.Equal(t, "staging", attr.Value.String())

	_, ok = extract(context.Background())
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var seen environment.Environment
	handler := environment.Middleware(environment.Development)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = environment.FromContext(r.Context())
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, environment.Development, seen)
}
