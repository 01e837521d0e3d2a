package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJWT собирает неподписанный JWT с заданным exp (подпись нам не важна)
func fakeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]int64{"exp": exp.Unix()})
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func TestSessionProvider_CachesToken(t *testing.T) {
	var calls atomic.Int64
	token := fakeJWT(t, time.Now().Add(1*time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprintf(w, `{"token": %q}`, token)
	}))
	defer srv.Close()

	p := NewSessionProvider(srv.URL, "console", "secret", 30*time.Second, srv.Client())

	got, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)

	// Второй вызов — из кэша, без похода к провайдеру
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestSessionProvider_RefreshesNearExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		// Первый токен уже в пределах leeway, второй — свежий
		exp := time.Now().Add(10 * time.Second)
		if n > 1 {
			exp = time.Now().Add(1 * time.Hour)
		}
		fmt.Fprintf(w, `{"token": %q}`, fakeJWT(t, exp))
	}))
	defer srv.Close()

	p := NewSessionProvider(srv.URL, "console", "secret", 30*time.Second, srv.Client())

	_, err := p.Token(context.Background())
	require.NoError(t, err)
	_, err = p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
}

func TestSessionProvider_ProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewSessionProvider(srv.URL, "console", "secret", 0, srv.Client())

	_, err := p.Token(context.Background())

	var aErr *AuthError
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, http.StatusForbidden, aErr.Status)
}

func TestSessionProvider_Invalidate(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintf(w, `{"token": %q}`, fakeJWT(t, time.Now().Add(1*time.Hour)))
	}))
	defer srv.Close()

	p := NewSessionProvider(srv.URL, "console", "secret", 0, srv.Client())

	_, err := p.Token(context.Background())
	require.NoError(t, err)

	p.Invalidate()

	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}
