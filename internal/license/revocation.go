package license

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// RevocationFeed is the remote kill-switch document: a list of revoked keys
// and revoked machine fingerprints, consumed read-only.
type RevocationFeed struct {
	RevokedKeys     []string `json:"revoked_keys"`
	RevokedMachines []string `json:"revoked_machines"`
}

// maxFeedBytes caps the revocation feed body read
const maxFeedBytes = 1 << 20

// CheckRemoteRevocation fetches the revocation feed and, when the active
// license's key or this machine's fingerprint appears in it, persists the
// revocation immediately. It returns true only when the license was revoked
// during this check.
//
// The check is fail-open by design: any network, status or parse failure is
// treated as "not revoked". Blocking the user on transient connectivity
// loss is judged worse than a brief window of unenforced revocation. The
// fail-open branches are explicit and logged so the policy stays visible
// and testable.
func (m *Manager) CheckRemoteRevocation(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}

	rec, err := m.store.ActiveRecord()
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	feed, ok := m.fetchFeed(ctx, url)
	if !ok {
		// Designated fail-open branch: unreachable or malformed feed is
		// treated as an empty revocation list.
		revocationChecksTotal.WithLabelValues("unreachable").Inc()
		return false, nil
	}

	if !containsString(feed.RevokedKeys, rec.LicenseKey) &&
		!containsString(feed.RevokedMachines, rec.MachineFingerprint) {
		revocationChecksTotal.WithLabelValues("clear").Inc()
		return false, nil
	}

	err = m.store.UpdateByID(rec.ID, func(r *Record) {
		r.IsActive = false
		r.IsRevoked = true
	})
	if err != nil {
		return false, err
	}

	revocationChecksTotal.WithLabelValues("revoked").Inc()
	m.logger.WarnContext(ctx, "license revoked by remote feed",
		slog.String("key_masked", MaskKey(rec.LicenseKey)),
		slog.String("feed_url", url))
	return true, nil
}

// fetchFeed retrieves and decodes the revocation document. Any failure
// returns ok=false; the caller owns the fail-open decision.
func (m *Manager) fetchFeed(ctx context.Context, url string) (*RevocationFeed, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, m.revocationTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		m.logger.WarnContext(ctx, "revocation check skipped",
			slog.String("reason", "bad_request"),
			slog.String("error", err.Error()))
		return nil, false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		m.logger.WarnContext(ctx, "revocation check skipped",
			slog.String("reason", "network_error"),
			slog.String("error", err.Error()))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.logger.WarnContext(ctx, "revocation check skipped",
			slog.String("reason", "bad_status"),
			slog.Int("status", resp.StatusCode))
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		m.logger.WarnContext(ctx, "revocation check skipped",
			slog.String("reason", "read_error"),
			slog.String("error", err.Error()))
		return nil, false
	}

	var feed RevocationFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		m.logger.WarnContext(ctx, "revocation check skipped",
			slog.String("reason", "malformed_feed"),
			slog.String("error", err.Error()))
		return nil, false
	}
	return &feed, true
}

func containsString(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
