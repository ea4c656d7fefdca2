// Package embed implements the token relay for the third-party hosted report:
// a client-credentials grant against the identity provider followed by an
// embed-token generation call, with the browser never seeing long-lived
// credentials.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrUpstreamAuth indicates the identity-token request failed.
var ErrUpstreamAuth = errors.New("embed: identity token request failed")

// ErrUpstreamToken indicates the embed-token generation request failed.
var ErrUpstreamToken = errors.New("embed: token generation request failed")

// Token is the relay's success payload.
type Token struct {
	EmbedToken string `json:"embedToken"`
	EmbedURL   string `json:"embedUrl"`
	ReportID   string `json:"reportId"`
	Expiry     string `json:"expiry"`
}

// Relay issues short-lived embed tokens. Concurrent requests are collapsed
// into one upstream round trip via singleflight; tokens are short-lived and
// not cached beyond that.
type Relay struct {
	cfg    Config
	client *http.Client
	group  singleflight.Group
	logger zerolog.Logger
}

// NewRelay constructs a Relay. A nil client falls back to http.DefaultClient.
func NewRelay(cfg Config, client *http.Client, logger zerolog.Logger) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{cfg: cfg, client: client, logger: logger}
}

// Token validates the server-side configuration, then performs the two
// sequential upstream calls. Configuration failures are terminal and reach
// no network. Upstream status text is logged, never returned.
func (r *Relay) Token(ctx context.Context) (Token, error) {
	if err := r.cfg.Validate(); err != nil {
		return Token{}, err
	}

	v, err, _ := r.group.Do("embed-token", func() (any, error) {
		access, err := r.fetchAccessToken(ctx)
		if err != nil {
			return Token{}, err
		}
		return r.generateEmbedToken(ctx, access)
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

func (r *Relay) fetchAccessToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {r.cfg.ClientID},
		"client_secret": {r.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {r.cfg.Scope},
	}
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(r.cfg.AuthorityURL, "/"), r.cfg.TenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error().Err(err).Msg("identity token request failed")
		return "", fmt.Errorf("%w: transport error", ErrUpstreamAuth)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Status text is telemetry-only; the response body may echo request
		// parameters and must not propagate to the caller.
		r.logger.Error().Str("status", resp.Status).Msg("identity provider returned non-success")
		return "", fmt.Errorf("%w: status %d", ErrUpstreamAuth, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token response", ErrUpstreamAuth)
	}
	return body.AccessToken, nil
}

func (r *Relay) generateEmbedToken(ctx context.Context, accessToken string) (Token, error) {
	payload, _ := json.Marshal(map[string]any{
		"accessLevel": "View",
		"allowSaveAs": false,
	})
	endpoint := fmt.Sprintf("%s/v1.0/myorg/groups/%s/reports/%s/GenerateToken",
		strings.TrimRight(r.cfg.APIBaseURL, "/"), r.cfg.WorkspaceID, r.cfg.ReportID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrUpstreamToken, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error().Err(err).Msg("embed token request failed")
		return Token{}, fmt.Errorf("%w: transport error", ErrUpstreamToken)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Error().Str("status", resp.Status).Msg("token generation returned non-success")
		return Token{}, fmt.Errorf("%w: status %d", ErrUpstreamToken, resp.StatusCode)
	}

	var body struct {
		Token      string `json:"token"`
		Expiration string `json:"expiration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Token == "" {
		return Token{}, fmt.Errorf("%w: malformed token response", ErrUpstreamToken)
	}

	embedURL := fmt.Sprintf("%s?reportId=%s&groupId=%s",
		r.cfg.EmbedURLBase, url.QueryEscape(r.cfg.ReportID), url.QueryEscape(r.cfg.WorkspaceID))

	return Token{
		EmbedToken: body.Token,
		EmbedURL:   embedURL,
		ReportID:   r.cfg.ReportID,
		Expiry:     body.Expiration,
	}, nil
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<20))
	_ = rc.Close()
}
