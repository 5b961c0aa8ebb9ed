package ddns

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testRequest() UpdateRequest {
	return UpdateRequest{
		Domain: "home.example.com",
		IPv4:   MustParseAddr(IPv4, "198.51.100.7"),
		TTL:    300,
	}
}

func TestHTTPDispatcherRequest(t *testing.T) {
	var (
		gotHeader http.Header
		gotBody   map[string]any
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		io.WriteString(w, `{"success": true}`)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL)
	d.SetLogger(zaptest.NewLogger(t))

	req := testRequest()
	req.IPv6 = MustParseAddr(IPv6, "2001:db8::1")
	out, err := d.Dispatch(context.Background(), req, Credential{Value: "tok123"})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, KindNone, out.ErrKind)
	assert.Equal(t, "198.51.100.7", out.NewIP.String())

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "Bearer tok123", gotHeader.Get("Authorization"))
	assert.Empty(t, gotHeader.Get("X-API-Key"))
	assert.NotEmpty(t, gotHeader.Get("X-Request-ID"))
	assert.Equal(t, map[string]any{
		"domain": "home.example.com",
		"ip":     "198.51.100.7",
		"ipv6":   "2001:db8::1",
		"ttl":    float64(300),
	}, gotBody)
}

func TestHTTPDispatcherAPIKeyHeader(t *testing.T) {
	var gotHeader http.Header
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		io.WriteString(w, `{"success": true}`)
	}))
	defer srv.Close()

	_, err := NewHTTPDispatcher(srv.URL).Dispatch(context.Background(), testRequest(), Credential{Value: "key_abc"})
	require.NoError(t, err)
	assert.Equal(t, "key_abc", gotHeader.Get("X-API-Key"))
	assert.Empty(t, gotHeader.Get("Authorization"))
	_, hasIPv6 := gotBody["ipv6"]
	assert.False(t, hasIPv6, "absent IPv6 must be omitted from the body")
}

func TestHTTPDispatcherClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
		code   string
	}{
		{"structured error", http.StatusBadRequest, `{"success": false, "error": {"code": "invalid_domain", "message": "no such domain"}}`, KindServerRejected, "invalid_domain"},
		{"structured error on 500", http.StatusInternalServerError, `{"error": {"code": "internal", "message": "try later"}}`, KindServerRejected, "internal"},
		{"success false", http.StatusOK, `{"success": false, "message": "nope"}`, KindServerRejected, ""},
		{"unauthorized", http.StatusUnauthorized, `Unauthorized`, KindServerRejected, ""},
		{"malformed 200", http.StatusOK, `<html>ok</html>`, KindServerRejected, ""},
		{"bad gateway", http.StatusBadGateway, `<html>bad gateway</html>`, KindNetwork, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			out, err := NewHTTPDispatcher(srv.URL).Dispatch(context.Background(), testRequest(), Credential{Value: "t"})
			require.Error(t, err)
			assert.False(t, out.Applied)
			assert.Equal(t, tc.kind, out.ErrKind)

			var ue *UpdateError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tc.kind, ue.Kind)
			assert.Equal(t, tc.status, ue.StatusCode)
			assert.Equal(t, tc.code, ue.Code)
			if tc.kind == KindNetwork {
				assert.ErrorIs(t, err, ErrNetwork)
			} else {
				assert.ErrorIs(t, err, ErrServerRejected)
			}
		})
	}
}

func TestHTTPDispatcherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := NewHTTPDispatcher(url).Dispatch(context.Background(), testRequest(), Credential{Value: "t"})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindNetwork, out.ErrKind)
	assert.False(t, out.Applied)
}

func TestHTTPDispatcherInvalidRequest(t *testing.T) {
	d := NewHTTPDispatcher("http://127.0.0.1:1")

	_, err := d.Dispatch(context.Background(), testRequest(), Credential{})
	assert.ErrorIs(t, err, ErrAuthMissing)

	req := testRequest()
	req.IPv4 = Addr{}
	_, err = d.Dispatch(context.Background(), req, Credential{Value: "t"})
	assert.Error(t, err)

	req = testRequest()
	req.IPv6 = MustParseAddr(IPv4, "192.0.2.1")
	_, err = d.Dispatch(context.Background(), req, Credential{Value: "t"})
	assert.Error(t, err)
}
