package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// snapshotVersion is the current on-disk session format. Bump it when
// the serialized fields change; restore refuses other versions.
const snapshotVersion = 1

// snapshot is the exact on-disk shape of a persisted session.
type snapshot struct {
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"saved_at"`
	Username string           `json:"username"`
	Cookies  []snapshotCookie `json:"cookies"`
}

type snapshotCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Persist atomically writes the session snapshot (cookies, username,
// timestamp) to the configured state path. A client without a state
// path persists nothing.
func (c *Client) Persist() error {
	if c.statePath == "" {
		return nil
	}

	snap := snapshot{
		Version:  snapshotVersion,
		SavedAt:  time.Now(),
		Username: c.Username,
	}
	for _, cookie := range c.Http.GetClient().Jar.Cookies(c.BaseUrl) {
		snap.Cookies = append(snap.Cookies, snapshotCookie{
			Name:  cookie.Name,
			Value: cookie.Value,
		})
	}

	buf, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	dir := filepath.Dir(c.statePath)
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.statePath)+".*")
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	_, err = tmp.Write(buf)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist session: %w", err)
	}
	err = os.Chmod(tmp.Name(), 0600)
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist session: %w", err)
	}
	err = os.Rename(tmp.Name(), c.statePath)
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist session: %w", err)
	}

	c.metrics.IncSnapshotWrite()
	return nil
}

// restore loads a snapshot from the state path into the cookie jar.
// The caller decides whether the restored session is still worth
// trusting.
func (c *Client) restore() (snapshot, error) {
	var snap snapshot
	if c.statePath == "" {
		return snap, os.ErrNotExist
	}

	buf, err := os.ReadFile(c.statePath)
	if err != nil {
		return snap, err
	}
	err = json.Unmarshal(buf, &snap)
	if err != nil {
		return snap, fmt.Errorf("restore session: %w", err)
	}
	if snap.Version != snapshotVersion {
		return snap, fmt.Errorf("restore session: unsupported snapshot version %d", snap.Version)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return snap, err
	}
	cookies := make([]*http.Cookie, 0, len(snap.Cookies))
	for _, cookie := range snap.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:  cookie.Name,
			Value: cookie.Value,
		})
	}
	jar.SetCookies(c.BaseUrl, cookies)
	c.Http.SetCookieJar(jar)

	return snap, nil
}

// LoadOrCreate brings the client into an authenticated state. It
// restores the persisted snapshot when one exists, and only trusts it
// if it belongs to the same username, was written within the freshness
// window, and VerifyLoggedIn confirms the session still holds. Any
// other outcome, a missing file and a corrupt file included, falls
// back to building a fresh session. This is the sole entry point the
// rest of the system uses to obtain a working session.
func (c *Client) LoadOrCreate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:LoadOrCreate")
	defer span.End()

	snap, err := c.restore()
	switch {
	case err == nil:
		if snap.Username != c.Username {
			slog.DebugContext(ctx, "snapshot belongs to another user, discarding",
				"snapshot_user", snap.Username, "user", c.Username)
			break
		}
		if time.Since(snap.SavedAt) > c.freshFor {
			slog.DebugContext(ctx, "snapshot is stale, discarding",
				"saved_at", snap.SavedAt)
			break
		}
		loggedIn, err := c.VerifyLoggedIn(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to verify restored session")
			return err
		}
		if loggedIn {
			slog.DebugContext(ctx, "restored session", "user", c.Username)
			return nil
		}
		slog.DebugContext(ctx, "restored session no longer logged in, discarding")
	case os.IsNotExist(err):
		slog.DebugContext(ctx, "no session snapshot, creating fresh session",
			"path", c.statePath)
	default:
		c.report.ReportWarning("load-or-create", fmt.Errorf("discarding snapshot: %w", err))
	}

	return c.createFresh(ctx)
}

// createFresh runs the fresh-session sequence on an empty cookie jar:
// baseline cookies, then login. Login persists the resulting state.
func (c *Client) createFresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:createFresh")
	defer span.End()

	c.metrics.IncSessionRebuild()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	c.Http.SetCookieJar(jar)

	err = c.ObtainBaselineCookies(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to obtain baseline cookies")
		return err
	}
	err = c.Login(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return err
	}
	return nil
}
