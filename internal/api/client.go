// Package api is the thin REST client for the backend services the crypto
// core consumes: the remote key directory and presigned-download resolution.
// Responses are opaque to the rest of the core; non-200 statuses are errors,
// never empty values.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jsilins/vaultchat/internal/common"
)

// Client talks to the vaultchat backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken installs the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// checkToken parses the bearer token's claims (without verifying the
// signature — that is the server's job) to fail fast on an expired token
// instead of burning a round trip.
func (c *Client) checkToken() error {
	if c.token == "" {
		return nil
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(c.token, claims); err != nil {
		// not a JWT; let the server decide
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("access token expired at %s: %w", exp.Time.Format(time.RFC3339), common.ErrTokenExpired)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if err := c.checkToken(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("GET %s: %w", path, common.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: unexpected status %s: %s", path, resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// GetPublicKey fetches another user's public key material from the key
// directory.
func (c *Client) GetPublicKey(ctx context.Context, userID string) ([]byte, error) {
	var body struct {
		PublicKey []byte `json:"publicKey"`
	}
	if err := c.getJSON(ctx, "/api/keys/"+url.PathEscape(userID), &body); err != nil {
		return nil, err
	}
	if len(body.PublicKey) == 0 {
		return nil, fmt.Errorf("key directory returned empty key for %s", userID)
	}
	return body.PublicKey, nil
}

// GetDownloadURL resolves a presigned, time-limited URL for a file's
// ciphertext. The URL is valid for a single decryption attempt and must
// not be cached beyond it.
func (c *Client) GetDownloadURL(ctx context.Context, fileID string) (string, error) {
	var body struct {
		DownloadURL string `json:"downloadUrl"`
	}
	if err := c.getJSON(ctx, "/api/files/download/"+url.PathEscape(fileID), &body); err != nil {
		return "", err
	}
	if body.DownloadURL == "" {
		return "", fmt.Errorf("empty download url for file %s", fileID)
	}
	return body.DownloadURL, nil
}
