package license

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteRevocationByKey(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	_, err := m.Activate(ctx, "PROF-AB12-CD34-EF56")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"revoked_keys": ["PROF-AB12-CD34-EF56"], "revoked_machines": []}`)
	}))
	defer server.Close()

	revoked, err := m.CheckRemoteRevocation(ctx, server.URL)
	require.NoError(t, err)
	assert.True(t, revoked)

	// The revocation is persisted: the slot is empty and the historical
	// record carries the revoked flag.
	assert.False(t, m.IsValid(ctx))
	rec, err := s.FindByKey("PROF-AB12-CD34-EF56")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsRevoked)
	assert.False(t, rec.IsActive)
}

func TestRemoteRevocationByMachineFingerprint(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	_, err := m.Activate(ctx, "PROF-AB12-CD34-EF56")
	require.NoError(t, err)

	active, err := s.ActiveRecord()
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"revoked_keys": [], "revoked_machines": [%q]}`, active.MachineFingerprint)
	}))
	defer server.Close()

	revoked, err := m.CheckRemoteRevocation(ctx, server.URL)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.False(t, m.IsValid(ctx))
}

func TestRemoteRevocationClearFeed(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Activate(ctx, "PROF-AB12-CD34-EF56")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"revoked_keys": ["ENTR-0000-0000-0000"], "revoked_machines": ["deadbeef"]}`)
	}))
	defer server.Close()

	revoked, err := m.CheckRemoteRevocation(ctx, server.URL)
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.True(t, m.IsValid(ctx))
}

// Fail-open policy: no reachable feed, bad status, or malformed body must
// never invalidate the license.
func TestRemoteRevocationFailOpen(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		close   bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"revoked_keys": not json`)
			},
		},
		{
			name: "connection refused",
			handler: func(w http.ResponseWriter, r *http.Request) {
			},
			close: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t)
			ctx := context.Background()

			_, err := m.Activate(ctx, "PROF-AB12-CD34-EF56")
			require.NoError(t, err)

			server := httptest.NewServer(tt.handler)
			url := server.URL
			if tt.close {
				server.Close()
			} else {
				defer server.Close()
			}

			revoked, err := m.CheckRemoteRevocation(ctx, url)
			require.NoError(t, err)
			assert.False(t, revoked)
			assert.True(t, m.IsValid(ctx), "fail-open must keep license valid")
		})
	}
}

// A slow feed trips the configured deadline and falls into the fail-open
// branch instead of hanging the caller.
func TestRemoteRevocationConfiguredTimeout(t *testing.T) {
	m, _ := newTestManager(t, WithRevocationTimeout(50*time.Millisecond))
	ctx := context.Background()

	_, err := m.Activate(ctx, "PROF-AB12-CD34-EF56")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, `{"revoked_keys": ["PROF-AB12-CD34-EF56"], "revoked_machines": []}`)
	}))
	defer server.Close()

	start := time.Now()
	revoked, err := m.CheckRemoteRevocation(ctx, server.URL)
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.True(t, m.IsValid(ctx))
}

func TestRemoteRevocationSkipsWhenUnactivated(t *testing.T) {
	m, _ := newTestManager(t)

	revoked, err := m.CheckRemoteRevocation(context.Background(), "http://127.0.0.1:1/revoked.json")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRemoteRevocationEmptyURL(t *testing.T) {
	m, _ := newTestManager(t)

	revoked, err := m.CheckRemoteRevocation(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
