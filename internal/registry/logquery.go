package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"vigil/internal/portresolver"
)

// LogQueryClient queries the transport's connect-log history service. It
// implements portresolver.LogQuery.
type LogQueryClient struct {
	baseURL string
	http    *http.Client
}

func NewLogQueryClient(baseURL string) *LogQueryClient {
	return &LogQueryClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ConnectEvents returns connection-open events for a client identity since
// the given time, optionally filtered by source IP.
func (c *LogQueryClient) ConnectEvents(ctx context.Context, clientID, ip string, since time.Time) ([]portresolver.ConnectEvent, error) {
	q := url.Values{}
	q.Set("clientId", clientID)
	q.Set("since", strconv.FormatInt(since.UnixMilli(), 10))
	if ip != "" {
		q.Set("ipAddress", ip)
	}
	u := fmt.Sprintf("%s/logs/connect?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect log query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("connect log query: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Events []struct {
			ClientID   string `json:"clientId"`
			IPAddress  string `json:"ipAddress"`
			SourcePort int    `json:"sourcePort"`
			Timestamp  int64  `json:"timestamp"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("connect log query: decode: %w", err)
	}

	events := make([]portresolver.ConnectEvent, 0, len(body.Events))
	for _, ev := range body.Events {
		events = append(events, portresolver.ConnectEvent{
			ClientID:   ev.ClientID,
			IPAddr:     ev.IPAddress,
			SourcePort: ev.SourcePort,
			Timestamp:  time.UnixMilli(ev.Timestamp),
		})
	}
	return events, nil
}
