package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout is the default HTTP request timeout. The controller
// transport enforces this bound so a hung serial exchange can never stall
// the console forever.
const DefaultTimeout = 5 * time.Second

// API paths exposed by the controller service.
const (
	pathPorts      = "/api/ports"
	pathInfo       = "/api/info"
	pathSnapshot   = "/api/snapshot"
	pathConnect    = "/api/connect"
	pathDisconnect = "/api/disconnect"
	pathToggle     = "/api/devices/toggle"
	pathTag        = "/api/devices/tag"
	pathConsigne   = "/api/devices/consigne"
	pathVanne      = "/api/devices/vanne"
	pathRamp       = "/api/devices/ramp"
	pathGas        = "/api/devices/gas"
	pathResetTotal = "/api/devices/total/reset"
	pathTheme      = "/api/theme"
)

// Client is an HTTP client for one controller service instance.
// It is safe for concurrent use.
type Client struct {
	// BaseURL is the base URL of the controller service
	// (e.g., "http://127.0.0.1:9327").
	BaseURL string

	// HTTPClient is the underlying HTTP client.
	HTTPClient *http.Client
}

// NewClient creates a client for the controller service at host:port.
func NewClient(host string, port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", host, port))
}

// NewClientWithURL creates a client with a full base URL
// (e.g., "http://192.168.1.40:9327").
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetTimeout sets the HTTP request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// ListPorts returns the serial ports the controller can open.
func (c *Client) ListPorts() ([]string, error) {
	var ports []string
	if err := c.do(http.MethodGet, pathPorts, nil, &ports, KindConnection, KindConnection); err != nil {
		return nil, err
	}
	return ports, nil
}

// Info returns the controller's application metadata, including the number
// of channels it manages and its persisted UI settings.
func (c *Client) Info() (*AppInfo, error) {
	var info AppInfo
	if err := c.do(http.MethodGet, pathInfo, nil, &info, KindConnection, KindConnection); err != nil {
		return nil, err
	}
	return &info, nil
}

// Snapshot fetches a full state snapshot. Failures are KindFetch so the
// poller can tell them apart from command failures.
func (c *Client) Snapshot() (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(http.MethodGet, pathSnapshot, nil, &snap, KindFetch, KindFetch); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Connect asks the controller to open the given serial port. The port must
// be one previously returned by ListPorts. On success the returned snapshot
// has Connected set.
func (c *Client) Connect(port string) (*Snapshot, error) {
	body := struct {
		Port string `json:"port"`
	}{Port: port}
	var snap Snapshot
	if err := c.do(http.MethodPost, pathConnect, body, &snap, KindConnection, KindConnection); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Disconnect releases the serial port. The controller treats this as
// idempotent: disconnecting twice succeeds twice, both times with
// Connected false in the returned snapshot.
func (c *Client) Disconnect() (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(http.MethodPost, pathDisconnect, struct{}{}, &snap, KindConnection, KindConnection); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ToggleDevice switches channel index on or off.
func (c *Client) ToggleDevice(index int, active bool) (*Snapshot, error) {
	body := struct {
		Index  int  `json:"index"`
		Active bool `json:"active"`
	}{Index: index, Active: active}
	return c.command(pathToggle, body)
}

// SetTag renames channel index. Unlike the other commands this returns no
// snapshot; the console applies NormalizeTag locally and the next poll
// converges on the controller's copy.
func (c *Client) SetTag(index int, tag string) error {
	body := struct {
		Index int    `json:"index"`
		Tag   string `json:"tag"`
	}{Index: index, Tag: tag}
	return c.do(http.MethodPost, pathTag, body, nil, KindConnection, KindCommandRejected)
}

// SetConsigne sets the setpoint of channel index.
func (c *Client) SetConsigne(index int, value float64) (*Snapshot, error) {
	body := struct {
		Index int     `json:"index"`
		Value float64 `json:"value"`
	}{Index: index, Value: value}
	return c.command(pathConsigne, body)
}

// SetVanne sets the valve mode of channel index. The mode must be one of
// the labels returned by ValveModes.
func (c *Client) SetVanne(index int, mode string) (*Snapshot, error) {
	body := struct {
		Index int    `json:"index"`
		Mode  string `json:"mode"`
	}{Index: index, Mode: mode}
	return c.command(pathVanne, body)
}

// SetRamp configures ramp-to-setpoint behavior of channel index.
func (c *Client) SetRamp(index int, active bool, timeS float64) (*Snapshot, error) {
	body := struct {
		Index  int     `json:"index"`
		Active bool    `json:"active"`
		TimeS  float64 `json:"time_s"`
	}{Index: index, Active: active, TimeS: timeS}
	return c.command(pathRamp, body)
}

// SelectGas selects the active gas of channel index. The gas must be one
// of the channel's configured gases.
func (c *Client) SelectGas(index int, gas string) (*Snapshot, error) {
	body := struct {
		Index int    `json:"index"`
		Gas   string `json:"gas"`
	}{Index: index, Gas: gas}
	return c.command(pathGas, body)
}

// ResetTotal zeroes the totalizer of channel index.
func (c *Client) ResetTotal(index int) (*Snapshot, error) {
	body := struct {
		Index int `json:"index"`
	}{Index: index}
	return c.command(pathResetTotal, body)
}

// SetTheme persists the console theme ("light" or "dark") on the
// controller side.
func (c *Client) SetTheme(theme string) error {
	body := struct {
		Theme string `json:"theme"`
	}{Theme: theme}
	return c.do(http.MethodPost, pathTheme, body, nil, KindConnection, KindCommandRejected)
}

// command posts a device command and decodes the authoritative snapshot
// the controller answers with.
func (c *Client) command(path string, body interface{}) (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(http.MethodPost, path, body, &snap, KindConnection, KindCommandRejected); err != nil {
		return nil, err
	}
	return &snap, nil
}

// do performs a single request. transportKind classifies failures to reach
// the controller at all; statusKind classifies HTTP error answers. There is
// no retry loop: a failed command requires explicit operator re-action, and
// the poller has its own cadence.
func (c *Client) do(method, path string, body, out interface{}, transportKind, statusKind Kind) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return NewProtocolError("failed to encode request body", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		return &Error{Kind: transportKind, Message: "failed to create request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &Error{Kind: transportKind, Message: "controller unreachable", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &Error{
			Kind:       statusKind,
			Message:    readErrorMessage(resp),
			StatusCode: resp.StatusCode,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: transportKind, Message: "failed to read response body", Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewProtocolError("failed to parse controller response", err)
	}
	return nil
}

// readErrorMessage extracts the controller's error message from an HTTP
// error response. Controller errors are {"error": "..."} JSON bodies; when
// the body is not in that shape the status line is used instead.
func readErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(resp.Body)
	if err == nil {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("controller answered %s", resp.Status)
}
