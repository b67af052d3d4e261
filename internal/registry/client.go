// Package registry holds the HTTP clients for the external collaborators:
// the credential/identity registry that owns certificates and device
// records, and the connect-log history used to recover source ports.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"vigil/pkg/platform/sentinel"
)

// Client talks to the credential registry. It implements
// revoke.CredentialRegistry.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ListPrincipals returns the credential references attached to a device
// identity. A 404 means the identity itself is unknown.
func (c *Client) ListPrincipals(ctx context.Context, deviceID string) ([]string, error) {
	u := fmt.Sprintf("%s/things/%s/principals", c.baseURL, url.PathEscape(deviceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, sentinel.ErrUnknownIdentity
	default:
		return nil, fmt.Errorf("list principals: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Principals []string `json:"principals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("list principals: decode: %w", err)
	}
	return body.Principals, nil
}

// Detach removes a credential from a device identity.
func (c *Client) Detach(ctx context.Context, deviceID, principal string) error {
	u := fmt.Sprintf("%s/things/%s/principals/detach", c.baseURL, url.PathEscape(deviceID))
	return c.post(ctx, u, map[string]string{"principal": principal})
}

// Deactivate sets a certificate's status to INACTIVE.
func (c *Client) Deactivate(ctx context.Context, certificateID string) error {
	u := fmt.Sprintf("%s/certificates/%s/status", c.baseURL, url.PathEscape(certificateID))
	return c.post(ctx, u, map[string]string{"status": "INACTIVE"})
}

func (c *Client) post(ctx context.Context, u string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return sentinel.ErrUnknownIdentity
	default:
		return fmt.Errorf("registry call %s: unexpected status %d", u, resp.StatusCode)
	}
}
