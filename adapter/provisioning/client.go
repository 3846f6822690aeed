// Package provisioning calls the user and host services that own remote
// profiles.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

var _ authcore.RemoteProvisioner = (*Client)(nil)

// StatusError is returned when a service answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provisioning: %s: status=%d", e.Op, e.StatusCode)
}

// Config points the client at the two services.
type Config struct {
	UserServiceURL string
	HostServiceURL string
	HTTPClient     *http.Client
}

// Client is the HTTP implementation of authcore.RemoteProvisioner.
type Client struct {
	users      string
	hosts      string
	httpClient *http.Client
}

// New constructs a Client. A nil HTTPClient gets a 10s timeout client.
func New(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		users:      strings.TrimRight(cfg.UserServiceURL, "/"),
		hosts:      strings.TrimRight(cfg.HostServiceURL, "/"),
		httpClient: client,
	}
}

type userRegistration struct {
	UserUUID    string `json:"userUuid"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type hostRegistration struct {
	HostUUID                   string `json:"hostUuid"`
	Name                       string `json:"name"`
	PhoneNumber                string `json:"phoneNumber"`
	BankName                   string `json:"bankName"`
	AccountNumber              string `json:"accountNumber"`
	BusinessRegistrationNumber string `json:"businessRegistrationNumber"`
	SettlementCycle            int    `json:"settlementCycle"`
}

func (c *Client) RegisterUser(ctx context.Context, externalUUID string, profile authcore.UserProfile) error {
	return c.post(ctx, "register user", c.users+"/internal/users/register", userRegistration{
		UserUUID:    externalUUID,
		Email:       profile.Email,
		Name:        profile.Name,
		PhoneNumber: profile.Phone,
	})
}

func (c *Client) RegisterSocialUser(ctx context.Context, externalUUID, name string) error {
	return c.post(ctx, "register social user", c.users+"/internal/users/register/social", userRegistration{
		UserUUID: externalUUID,
		Name:     name,
	})
}

func (c *Client) RegisterHost(ctx context.Context, externalUUID string, profile authcore.HostProfile) error {
	return c.post(ctx, "register host", c.hosts+"/internal/hosts/register", hostRegistration{
		HostUUID:                   externalUUID,
		Name:                       profile.Name,
		PhoneNumber:                profile.Phone,
		BankName:                   profile.BankName,
		AccountNumber:              profile.AccountNumber,
		BusinessRegistrationNumber: profile.BusinessNumber,
		SettlementCycle:            profile.SettlementCycle,
	})
}

// FindDisplayName asks the owning service for the principal's name. The
// services answer with either a bare string or a JSON string.
func (c *Client) FindDisplayName(ctx context.Context, role authcore.Role, email string) (string, error) {
	endpoint := c.users + "/internal/users/name"
	if role == authcore.RoleHost {
		endpoint = c.hosts + "/internal/hosts/name"
	}
	endpoint += "?" + url.Values{"email": {email}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("provisioning: build name request: %w", err)
	}
	body, err := c.do(req, "find name")
	if err != nil {
		return "", err
	}

	raw := bytes.TrimSpace(body)
	if len(raw) > 0 && raw[0] == '"' {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return "", fmt.Errorf("provisioning: decode name: %w", err)
		}
		return name, nil
	}
	return string(raw), nil
}

func (c *Client) post(ctx context.Context, op, endpoint string, payload any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("provisioning: encode %s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("provisioning: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, op)
	return err
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provisioning: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("provisioning: read %s response: %w", op, err)
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	return body, nil
}
