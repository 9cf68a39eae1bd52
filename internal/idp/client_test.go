package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeURL(t *testing.T) {
	c := New("https://xyz.supabase.co", "pk-test")

	raw := c.AuthorizeURL("http://app.example:8050", "challenge-C", "state-S")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "xyz.supabase.co", parsed.Host)
	assert.Equal(t, "/auth/v1/authorize", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "google", q.Get("provider"))
	assert.Equal(t, "http://app.example:8050/auth/callback", q.Get("redirect_to"))
	assert.Equal(t, "state-S", q.Get("state"))
	assert.Equal(t, "challenge-C", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestExchangeCode(t *testing.T) {
	var gotPath, gotQuery, gotAPIKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(Session{
			AccessToken:  "T",
			RefreshToken: "R",
			ExpiresIn:    3600,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "pk-test")
	session, err := c.ExchangeCode(context.Background(), "code-C", "verifier-V")
	require.NoError(t, err)

	assert.Equal(t, "/auth/v1/token", gotPath)
	assert.Equal(t, "grant_type=pkce", gotQuery)
	assert.Equal(t, "pk-test", gotAPIKey)
	assert.Equal(t, "code-C", gotBody["auth_code"])
	assert.Equal(t, "verifier-V", gotBody["code_verifier"])

	assert.Equal(t, "T", session.AccessToken)
	assert.Equal(t, "R", session.RefreshToken)
	assert.Equal(t, 3600, session.ExpiresIn)
}

func TestExchangeCodeProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "pk-test")
	_, err := c.ExchangeCode(context.Background(), "bad-code", "v")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.Status)
	assert.JSONEq(t, `{"error_code":"invalid_grant"}`, string(authErr.Detail()))
}

func TestExchangeCodeMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"refresh_token":"R"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "pk-test")
	_, err := c.ExchangeCode(context.Background(), "code", "v")
	assert.Error(t, err)
}

func TestExchangeCodeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL, "pk-test")
	_, err := c.ExchangeCode(context.Background(), "code", "v")
	require.Error(t, err)

	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr), "transport failures are not AuthErrors")
}

func TestVerifyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		assert.Equal(t, "pk-test", r.Header.Get("apikey"))
		_ = json.NewEncoder(w).Encode(User{ID: "user-1", Email: "a@example.com"})
	}))
	defer srv.Close()

	c := New(srv.URL, "pk-test")
	user := c.VerifyToken(context.Background(), "T")
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "a@example.com", user.Email)
}

func TestVerifyTokenAcceptsAnySuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(User{ID: "user-1", Email: "a@example.com"})
	}))
	defer srv.Close()

	c := New(srv.URL, "pk-test")
	user := c.VerifyToken(context.Background(), "T")
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
}

func TestVerifyTokenFailuresReturnNoPrincipal(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"server_error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"empty_user", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}},
		{"garbage_body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := New(srv.URL, "pk-test")
			assert.Nil(t, c.VerifyToken(context.Background(), "T"))
		})
	}
}

func TestVerifyTokenTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "pk-test")
	assert.Nil(t, c.VerifyToken(context.Background(), "T"))
}

func TestPasswordSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "grant_type=password", r.URL.RawQuery)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@example.com", body["email"])
		assert.Equal(t, "hunter2", body["password"])

		_ = json.NewEncoder(w).Encode(Session{AccessToken: "T", ExpiresIn: 3600})
	}))
	defer srv.Close()

	c := New(srv.URL, "pk-test")
	session, err := c.PasswordSignIn(context.Background(), "a@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "T", session.AccessToken)
}

func TestSignUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "http://app.example/login", body["redirect_to"])

		_, _ = w.Write([]byte(`{"id":"user-1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "pk-test")
	err := c.SignUp(context.Background(), "a@example.com", "hunter2", "http://app.example/login")
	assert.NoError(t, err)
}

func TestRequestPasswordReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/recover", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "pk-test")
	err := c.RequestPasswordReset(context.Background(), "a@example.com", "http://app.example/login")
	assert.NoError(t, err)
}

func TestHealth(t *testing.T) {
	t.Run("healthy provider", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/health", r.URL.Path)
			assert.Equal(t, "pk-test", r.Header.Get("apikey"))
			_, _ = w.Write([]byte(`{"name":"GoTrue"}`))
		}))
		defer srv.Close()

		c := New(srv.URL, "pk-test")
		assert.NoError(t, c.Health(context.Background()))
	})

	t.Run("unhealthy provider", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := New(srv.URL, "pk-test")
		var authErr *AuthError
		require.ErrorAs(t, c.Health(context.Background()), &authErr)
		assert.Equal(t, http.StatusServiceUnavailable, authErr.Status)
	})
}

func TestAuthErrorDetailWrapsNonJSON(t *testing.T) {
	e := &AuthError{Status: 502, Body: "bad gateway"}
	assert.JSONEq(t, `{"message":"bad gateway"}`, string(e.Detail()))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@example.com", NormalizeEmail("  A@Example.COM "))
}
