package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"iptv-check/work/config"
	"iptv-check/work/logger"
	"iptv-check/work/utils"
)

// maxBodySize bounds a downloaded playlist or HLS manifest.
const maxBodySize = 64 << 20

// HeaderSettingClient wraps http.Client to automatically set headers
type HeaderSettingClient struct {
	Client *http.Client
	config *config.Config
}

// NewHeaderSettingClient builds the client used for playlist downloads and
// HLS manifest lookups. Per-request deadlines come from the context.
func NewHeaderSettingClient(cfg *config.Config) *HeaderSettingClient {
	client := &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			// gzip is handled in Fetch so .gz playlists decode the same way
			DisableCompression: true,
		},
	}

	return &HeaderSettingClient{
		Client: client,
		config: cfg,
	}
}

func (hsc *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	hsc.setHeaders(req)
	return hsc.Client.Do(req)
}

func (hsc *HeaderSettingClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", hsc.config.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip")
}

// Fetch downloads url and returns the decoded body. Gzip bodies, announced
// by Content-Encoding or a .gz path, are decompressed.
func (hsc *HeaderSettingClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := hsc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", utils.LogURL(hsc.config, url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, utils.LogURL(hsc.config, url))
	}

	var body io.Reader = io.LimitReader(resp.Body, maxBodySize)
	if isGzip(resp, url) {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		defer gz.Close()
		body = io.LimitReader(gz, maxBodySize)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	logger.Debug("{client - Fetch} %d bytes from %s", len(data), utils.LogURL(hsc.config, url))
	return data, nil
}

func isGzip(resp *http.Response, url string) bool {
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return true
	}
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}
