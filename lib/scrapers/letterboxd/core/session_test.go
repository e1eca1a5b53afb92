package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"lunaboxd/lib/telemetry"
)

func registerLogin(transport *httpmock.MockTransport) {
	transport.RegisterResponder("POST", testBaseUrl+"/user/login.do/",
		httpmock.NewStringResponder(200, `{"result": true}`))
}

func registerProfile(transport *httpmock.MockTransport, username string) {
	transport.RegisterResponder("GET", testBaseUrl+"/"+username+"/",
		httpmock.NewStringResponder(200, profileHtml))
}

func writeSnapshot(t *testing.T, path string, snap snapshot) {
	t.Helper()
	buf, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf, 0600))
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/core")
	defer cleanup()
	ctx := context.Background()

	statePath := filepath.Join(t.TempDir(), "session.json")

	first, transport := newTestClient(t, Options{StatePath: statePath})
	registerHome(transport, "token-abc")
	registerLogin(transport)
	registerProfile(transport, "testuser")

	err := first.LoadOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, transport.GetCallCountInfo()["POST "+testBaseUrl+"/user/login.do/"])
	require.FileExists(t, statePath)

	// a second client with the same state path must pick up the session
	// without logging in again
	second, transport2 := newTestClient(t, Options{StatePath: statePath})
	registerProfile(transport2, "testuser")

	err = second.LoadOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, transport2.GetCallCountInfo()["POST "+testBaseUrl+"/user/login.do/"])
	require.Equal(t, "token-abc", second.csrfToken())
}

func TestLoadOrCreateStaleSnapshot(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/core")
	defer cleanup()
	ctx := context.Background()

	statePath := filepath.Join(t.TempDir(), "session.json")
	writeSnapshot(t, statePath, snapshot{
		Version:  snapshotVersion,
		SavedAt:  time.Now().Add(-2 * time.Hour),
		Username: "testuser",
		Cookies:  []snapshotCookie{{Name: csrfCookie, Value: "stale-token"}},
	})

	client, transport := newTestClient(t, Options{StatePath: statePath, FreshFor: time.Hour})
	registerHome(transport, "fresh-token")
	registerLogin(transport)

	err := client.LoadOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, transport.GetCallCountInfo()["POST "+testBaseUrl+"/user/login.do/"])
	require.Equal(t, "fresh-token", client.csrfToken())
}

func TestLoadOrCreateUsernameMismatch(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/core")
	defer cleanup()
	ctx := context.Background()

	statePath := filepath.Join(t.TempDir(), "session.json")
	writeSnapshot(t, statePath, snapshot{
		Version:  snapshotVersion,
		SavedAt:  time.Now(),
		Username: "someoneelse",
		Cookies:  []snapshotCookie{{Name: csrfCookie, Value: "their-token"}},
	})

	client, transport := newTestClient(t, Options{StatePath: statePath})
	registerHome(transport, "my-token")
	registerLogin(transport)

	err := client.LoadOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, transport.GetCallCountInfo()["POST "+testBaseUrl+"/user/login.do/"])
}

func TestLoadOrCreateCorruptSnapshot(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/core")
	defer cleanup()
	ctx := context.Background()

	statePath := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(statePath, []byte("{not json"), 0600))

	client, transport := newTestClient(t, Options{StatePath: statePath})
	registerHome(transport, "token-abc")
	registerLogin(transport)

	err := client.LoadOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, transport.GetCallCountInfo()["POST "+testBaseUrl+"/user/login.do/"])
}

func TestLoadOrCreateUnsupportedVersion(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/core")
	defer cleanup()
	ctx := context.Background()

	statePath := filepath.Join(t.TempDir(), "session.json")
	writeSnapshot(t, statePath, snapshot{
		Version:  99,
		SavedAt:  time.Now(),
		Username: "testuser",
	})

	client, transport := newTestClient(t, Options{StatePath: statePath})
	registerHome(transport, "token-abc")
	registerLogin(transport)

	err := client.LoadOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, transport.GetCallCountInfo()["POST "+testBaseUrl+"/user/login.do/"])
}

func TestLoadOrCreateExpiredServerSide(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/core")
	defer cleanup()
	ctx := context.Background()

	statePath := filepath.Join(t.TempDir(), "session.json")
	writeSnapshot(t, statePath, snapshot{
		Version:  snapshotVersion,
		SavedAt:  time.Now(),
		Username: "testuser",
		Cookies:  []snapshotCookie{{Name: csrfCookie, Value: "revoked-token"}},
	})

	client, transport := newTestClient(t, Options{StatePath: statePath})
	// fresh snapshot, but the server no longer recognizes the session:
	// the profile page comes back without the logged-in marker
	transport.RegisterResponder("GET", testBaseUrl+"/testuser/",
		httpmock.NewStringResponder(200, `<html><body><h1>testuser</h1></body></html>`))
	registerHome(transport, "token-abc")
	registerLogin(transport)

	err := client.LoadOrCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, transport.GetCallCountInfo()["POST "+testBaseUrl+"/user/login.do/"])
}

func TestPersistDisabled(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/core")
	defer cleanup()

	client, _ := newTestClient(t, Options{})
	require.NoError(t, client.Persist())
}

func TestPersistSnapshotShape(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/letterboxd/core")
	defer cleanup()
	ctx := context.Background()

	statePath := filepath.Join(t.TempDir(), "session.json")
	client, transport := newTestClient(t, Options{StatePath: statePath})
	registerHome(transport, "token-abc")

	err := client.ObtainBaselineCookies(ctx)
	require.NoError(t, err)

	buf, err := os.ReadFile(statePath)
	require.NoError(t, err)
	var snap snapshot
	require.NoError(t, json.Unmarshal(buf, &snap))
	require.Equal(t, snapshotVersion, snap.Version)
	require.Equal(t, "testuser", snap.Username)
	require.WithinDuration(t, time.Now(), snap.SavedAt, time.Minute)
	require.Contains(t, snap.Cookies, snapshotCookie{Name: csrfCookie, Value: "token-abc"})
}
