// Package bizno verifies Korean business registration numbers with the
// bizno.net registry API.
package bizno

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

// DefaultEndpoint is the bizno.net lookup API.
const DefaultEndpoint = "https://bizno.net/api/fapi"

// statusActive is the registry code for an operating business. The free
// API tier omits the code, so an empty code also counts as active.
const statusActive = "01"

var numberPattern = regexp.MustCompile(`^\d{10}$`)

var _ authcore.BusinessVerifier = (*Client)(nil)

// Client is the bizno.net implementation of authcore.BusinessVerifier.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New returns a Client for endpoint, or DefaultEndpoint when it is empty.
func New(endpoint, apiKey string, client *http.Client) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{endpoint: endpoint, apiKey: apiKey, httpClient: client}
}

type lookupResponse struct {
	ResultCode int    `json:"resultCode"`
	ResultMsg  string `json:"resultMsg"`
	TotalCount int    `json:"totalCount"`
	Items      []*struct {
		Company    string `json:"company"`
		Number     string `json:"bno"`
		StatusCode string `json:"bsttcd"`
		Status     string `json:"bstt"`
	} `json:"items"`
}

// VerifyBusinessNumber accepts the number when at least one registry entry
// is active. Malformed, unknown and closed numbers return an error matching
// authcore.ErrBusinessNumberInvalid; anything else is an API failure.
func (c *Client) VerifyBusinessNumber(ctx context.Context, number string) error {
	number = strings.TrimSpace(strings.ReplaceAll(number, "-", ""))
	if !numberPattern.MatchString(number) {
		return fmt.Errorf("%w: must be 10 digits", authcore.ErrBusinessNumberInvalid)
	}

	query := url.Values{
		"key":  {c.apiKey},
		"gb":   {"1"},
		"q":    {number},
		"type": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("bizno: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bizno: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("bizno: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bizno: lookup failed: status=%d", resp.StatusCode)
	}

	var out lookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("bizno: decode response: %w", err)
	}

	reason := "no registry entry"
	for _, item := range out.Items {
		if item == nil {
			continue
		}
		code := strings.TrimSpace(item.StatusCode)
		if code == "" || code == statusActive {
			return nil
		}
		reason = fmt.Sprintf("status %s (%s)", code, item.Status)
	}
	return fmt.Errorf("%w: %s", authcore.ErrBusinessNumberInvalid, reason)
}
