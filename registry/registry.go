// Package registry implements the catalog collaborator: an HTTP client for
// the community plugin catalog that serves, per plugin id, the latest
// release manifest, the historical versions ledger, and release code.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/igne-dev/pluginhost/netutil"
	"github.com/igne-dev/pluginhost/parser"
	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/ports"
	"github.com/igne-dev/pluginhost/plugin/values"
)

const (
	maxManifestBytes = 1 << 20  // 1 MiB
	maxLedgerBytes   = 4 << 20  // 4 MiB
	maxArtifactBytes = 64 << 20 // 64 MiB
)

// Client is the HTTP catalog client. Responses are untrusted input: bodies
// are size-limited, manifests schema-validated, and malformed version
// strings rejected per entry.
type Client struct {
	baseURL string
	http    *http.Client
	parser  parser.ManifestParser
	logger  *slog.Logger
}

var _ ports.ReleaseSource = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default retrying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a catalog client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if err := netutil.ValidateDownloadURL(baseURL); err != nil {
		return nil, fmt.Errorf("catalog base url: %w", err)
	}
	manifestParser, err := parser.NewJSONManifestParser()
	if err != nil {
		return nil, fmt.Errorf("building manifest parser: %w", err)
	}

	c := &Client{
		baseURL: netutil.NormalizeURL(baseURL),
		http: &http.Client{
			Transport: &netutil.RetryTransport{},
			Timeout:   30 * time.Second,
		},
		parser: manifestParser,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LatestRelease fetches and validates the plugin's catalog manifest.
func (c *Client) LatestRelease(ctx context.Context, id values.PluginID) (entities.PluginRelease, error) {
	body, err := c.get(ctx, c.url(id, "manifest.json"), maxManifestBytes, id)
	if err != nil {
		return entities.PluginRelease{}, err
	}

	manifest, err := c.parser.Parse(body)
	if err != nil {
		return entities.PluginRelease{}, fmt.Errorf("plugin %s: %w", id, err)
	}

	version, err := values.ParseVersion(manifest.Version)
	if err != nil {
		return entities.PluginRelease{}, err
	}
	minApp, err := values.ParseVersion(manifest.MinAppVersion)
	if err != nil {
		return entities.PluginRelease{}, err
	}

	return entities.PluginRelease{
		ID:            id,
		Version:       version,
		MinAppVersion: minApp,
		DownloadURL:   c.url(id, version.String()+"/plugin.wasm"),
	}, nil
}

// Versions fetches the plugin's historical releases ledger. Entries that
// fail to parse are dropped later, at resolution time; the document only
// needs to be well-formed JSON here.
func (c *Client) Versions(ctx context.Context, id values.PluginID) (entities.VersionsLedger, error) {
	body, err := c.get(ctx, c.url(id, "versions.json"), maxLedgerBytes, id)
	if err != nil {
		return nil, err
	}

	var ledger entities.VersionsLedger
	if err := json.Unmarshal(body, &ledger); err != nil {
		return nil, fmt.Errorf("plugin %s: decoding versions ledger: %w", id, err)
	}
	return ledger, nil
}

// Download fetches the code artifact for a resolved release.
func (c *Client) Download(ctx context.Context, release entities.PluginRelease) ([]byte, error) {
	url := release.DownloadURL
	if url == "" {
		url = c.url(release.ID, release.Version.String()+"/plugin.wasm")
	}
	if err := netutil.ValidateDownloadURL(url); err != nil {
		return nil, err
	}

	c.logger.Info("downloading plugin release",
		"plugin", release.ID.String(),
		"version", release.Version.String(),
		"url", netutil.StripCredentials(url))

	return c.get(ctx, url, maxArtifactBytes, release.ID)
}

func (c *Client) url(id values.PluginID, suffix string) string {
	return fmt.Sprintf("%s/plugins/%s/%s", c.baseURL, id, suffix)
}

func (c *Client) get(ctx context.Context, url string, limit int64, id values.PluginID) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", "url", netutil.StripCredentials(url), "error", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &entities.PluginNotFoundError{ID: id}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("catalog returned %s for %s", resp.Status, netutil.StripCredentials(url))
	}

	body, err := io.ReadAll(netutil.NewLimitedReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("reading catalog response: %w", err)
	}
	return body, nil
}
