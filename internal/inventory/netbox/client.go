// Package netbox implements the inventory.Source interface against the
// NetBox REST API.
package netbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alexbarcelo/netbox-dns-handler/pkg/httputil"
)

// DefaultPageSize is the page size requested from list endpoints.
const DefaultPageSize = 200

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

// apiRef is the nested representation NetBox uses for related objects.
type apiRef struct {
	ID      int    `json:"id"`
	URL     string `json:"url"`
	Display string `json:"display"`
}

// apiAssignedObject is the assigned_object of an IP address. Interfaces
// carry either a device or a virtual machine.
type apiAssignedObject struct {
	apiRef
	Device         *apiRef `json:"device,omitempty"`
	VirtualMachine *apiRef `json:"virtual_machine,omitempty"`
}

// apiIPAddress is an entry of /api/ipam/ip-addresses/. Nested addresses
// inside services only carry the apiRef fields and the address.
type apiIPAddress struct {
	apiRef
	Address            string             `json:"address"`
	DNSName            string             `json:"dns_name"`
	AssignedObjectType string             `json:"assigned_object_type"`
	AssignedObject     *apiAssignedObject `json:"assigned_object"`
}

// apiService is an entry of /api/ipam/services/.
type apiService struct {
	apiRef
	Name        string         `json:"name"`
	Ports       []int          `json:"ports"`
	IPAddresses []apiIPAddress `json:"ipaddresses"`
}

// page is the NetBox list envelope.
type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// StatusError is returned when NetBox answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// Client is a NetBox API client. It is read-only.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
	logger     *slog.Logger

	httpConfig httputil.ClientConfig
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The client is responsible for
// authentication; NewClient otherwise builds one that sends the token.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPageSize sets the page size for list requests.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout sets the HTTP timeout of the built-in HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpConfig.Timeout = timeout
	}
}

// WithTLSSkipVerify disables certificate verification on the built-in
// HTTP client.
func WithTLSSkipVerify(skip bool) ClientOption {
	return func(c *Client) {
		c.httpConfig.TLSSkipVerify = skip
	}
}

// WithUserAgent sets the User-Agent of the built-in HTTP client.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.httpConfig.UserAgent = ua
	}
}

// NewClient creates a NetBox API client for baseURL (for example
// "https://netbox.example.org") authenticating with token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		cfg := c.httpConfig
		cfg.Headers = map[string]string{
			"Authorization": "Token " + token,
			"Accept":        "application/json",
		}
		cfg.Logger = c.logger
		c.httpClient = httputil.NewClient(&cfg)
	}

	return c
}

// endpoint builds an absolute URL for an API path.
func (c *Client) endpoint(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// getJSON performs a GET request and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	c.logger.Debug("making API request", slog.String("url", req.URL.Redacted()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response JSON: %w", err)
	}
	return nil
}

// list fetches every page of a list endpoint, following the next links.
func list[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("limit", strconv.Itoa(c.pageSize))

	var all []T
	next := c.endpoint(path, params)
	for next != "" {
		var p page[T]
		if err := c.getJSON(ctx, next, &p); err != nil {
			return nil, fmt.Errorf("listing %s: %w", path, err)
		}
		all = append(all, p.Results...)

		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}
	return all, nil
}

// listIPAddresses returns all IP addresses.
func (c *Client) listIPAddresses(ctx context.Context) ([]apiIPAddress, error) {
	return list[apiIPAddress](ctx, c, "/api/ipam/ip-addresses/", nil)
}

// getIPAddress fetches a single IP address by id.
func (c *Client) getIPAddress(ctx context.Context, id int) (*apiIPAddress, error) {
	var ip apiIPAddress
	if err := c.getJSON(ctx, c.endpoint(fmt.Sprintf("/api/ipam/ip-addresses/%d/", id), nil), &ip); err != nil {
		return nil, fmt.Errorf("getting ip address %d: %w", id, err)
	}
	return &ip, nil
}

// listServices returns the services with the given name.
func (c *Client) listServices(ctx context.Context, name string) ([]apiService, error) {
	params := url.Values{}
	params.Set("name", name)
	return list[apiService](ctx, c, "/api/ipam/services/", params)
}

// Ping checks connectivity and authentication using /api/status/.
func (c *Client) Ping(ctx context.Context) error {
	var status map[string]any
	if err := c.getJSON(ctx, c.endpoint("/api/status/", nil), &status); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
