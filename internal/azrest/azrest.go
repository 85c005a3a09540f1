// Package azrest posts JSON to Azure AI REST endpoints that authenticate with a
// resource key header. Requests go through an azcore pipeline with retries off.
package azrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

var ErrNotConfigured = errors.New("endpoint and key are required")

const (
	DefaultTimeout = 30 * time.Second

	moduleName    = "counterpoint/azrest"
	moduleVersion = "v1.0.0"
)

// Error is a non-2xx reply. The embedded azcore error carries the status and the
// top-level error code; InnerCode and Message come from the {"error": {...}} envelope.
type Error struct {
	*azcore.ResponseError
	InnerCode string
	Message   string
}

func (e *Error) Error() string {
	detail := e.Message
	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("status %d (%s): %s", e.StatusCode, e.ErrorCode, detail)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, detail)
}

func (e *Error) Unwrap() error { return e.ResponseError }

type Client struct {
	Endpoint string
	Key      string

	pipeline runtime.Pipeline
}

// New builds a client that sends key in keyHeader. Plain HTTP is accepted only
// for loopback endpoints.
func New(endpoint, key, keyHeader string) *Client {
	return NewWithTransport(endpoint, key, keyHeader, &http.Client{Timeout: DefaultTimeout})
}

func NewWithTransport(endpoint, key, keyHeader string, transport policy.Transporter) *Client {
	c := &Client{Endpoint: strings.TrimRight(endpoint, "/"), Key: key}
	if !c.Configured() {
		return c
	}
	auth := runtime.NewKeyCredentialPolicy(azcore.NewKeyCredential(key), keyHeader, &runtime.KeyCredentialPolicyOptions{
		InsecureAllowCredentialWithHTTP: isLoopback(c.Endpoint),
	})
	c.pipeline = runtime.NewPipeline(moduleName, moduleVersion,
		runtime.PipelineOptions{PerRetry: []policy.Policy{auth}},
		&policy.ClientOptions{
			Retry:     policy.RetryOptions{MaxRetries: -1},
			Transport: transport,
		})
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.Endpoint != "" && c.Key != ""
}

// PostJSON sends in to endpoint+path?api-version=version and decodes into out.
func (c *Client) PostJSON(ctx context.Context, path, version string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	req, err := runtime.NewRequest(ctx, http.MethodPost, c.Endpoint+path)
	if err != nil {
		return err
	}
	if version != "" {
		q := req.Raw().URL.Query()
		q.Set("api-version", version)
		req.Raw().URL.RawQuery = q.Encode()
	}
	if err := runtime.MarshalAsJSON(req, in); err != nil {
		return err
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return newError(resp)
	}
	if out == nil {
		return nil
	}
	return runtime.UnmarshalAsJSON(resp, out)
}

func newError(resp *http.Response) error {
	var respErr *azcore.ResponseError
	if !errors.As(runtime.NewResponseError(resp), &respErr) {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	out := &Error{ResponseError: respErr}

	body, err := runtime.Payload(resp)
	if err != nil {
		return out
	}
	var envelope struct {
		Error struct {
			Message    string `json:"message"`
			InnerError struct {
				Code string `json:"code"`
			} `json:"innererror"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		out.Message = envelope.Error.Message
		out.InnerCode = envelope.Error.InnerError.Code
	}
	if out.Message == "" {
		out.Message = strings.TrimSpace(string(body))
	}
	return out
}

func isLoopback(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
