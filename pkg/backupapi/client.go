package backupapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	defaultServerURLString = "http://public.vbs.vccloud.vn/v1"
	userAgent              = "bizfly-vm-protection-client"

	requestIDHeader = "X-Client-Request-Id"
)

// Client is the client for interacting with the backup service API server.
type Client struct {
	client    *http.Client
	ServerURL *url.URL
	accessKey string
	secretKey string
	vault     string

	userAgent string

	logger *zap.Logger
}

// NewClient creates a Client with given options.
func NewClient(opts ...ClientOption) (*Client, error) {
	serverURL, _ := url.Parse(defaultServerURLString)
	c := &Client{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
			Timeout: 30 * time.Second,
		},
		ServerURL: serverURL,
		userAgent: userAgent,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return c, nil
}

// ClientOption provides mechanism to configure Client.
type ClientOption func(c *Client) error

// WithHTTPClient sets the underlying HTTP client for Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) error {
		if client == nil {
			return errors.New("nil HTTP client")
		}
		c.client = client
		return nil
	}
}

// WithServerURL sets the server url for Client.
func WithServerURL(serverURL string) ClientOption {
	return func(c *Client) error {
		su, err := url.Parse(serverURL)
		if err != nil {
			return err
		}
		c.ServerURL = su
		return nil
	}
}

// WithAccessKey sets the access key for Client.
func WithAccessKey(accessKey string) ClientOption {
	return func(c *Client) error {
		c.accessKey = accessKey
		return nil
	}
}

// WithSecretKey sets the secret key for Client.
func WithSecretKey(secretKey string) ClientOption {
	return func(c *Client) error {
		c.secretKey = secretKey
		return nil
	}
}

// WithVault sets the recovery vault every request is scoped to.
func WithVault(vault string) ClientOption {
	return func(c *Client) error {
		if vault == "" {
			return errors.New("empty vault name")
		}
		c.vault = vault
		return nil
	}
}

// WithLogger sets the logger for Client.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		c.logger = logger
		return nil
	}
}

// NewRequest create new http request
func (c *Client) NewRequest(ctx context.Context, method, relPath string, body interface{}) (*http.Request, error) {
	buf := new(bytes.Buffer)
	if body != nil {
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, err
		}
	}

	reqURL, err := c.urlStringFromRelPath(relPath)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, buf)
	if err != nil {
		return nil, err
	}

	return req, nil
}

// Do makes an http request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(c.client, req, "application/json")
}

func (c *Client) do(httpClient *http.Client, req *http.Request, contentType string) (*http.Response, error) {
	req.Header.Add("User-Agent", c.userAgent)
	now := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Add("Date", now)
	req.Header.Add("Authorization", c.authorizationHeaderValue(req.Method, now))
	req.Header.Add("Content-Type", contentType)
	requestID := uuid.New().String()
	req.Header.Set(requestIDHeader, requestID)

	start := time.Now()
	resp, err := httpClient.Do(req)
	code := "error"
	if err == nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	observeRequest(req.Method, code, time.Since(start))

	c.logger.Debug("backup service request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("request_id", requestID),
		zap.String("code", code),
		zap.Duration("elapsed", time.Since(start)))
	return resp, err
}

func (c *Client) authorizationHeaderValue(method, now string) string {
	s := strings.Join([]string{method, c.accessKey, c.secretKey, now}, "")
	hash := sha256.Sum256([]byte(s))
	return "VBS " + strings.Join([]string{c.accessKey, hex.EncodeToString(hash[:])}, ":")
}

func (c *Client) urlStringFromRelPath(relPath string) (string, error) {
	if c.ServerURL.Path != "" && c.ServerURL.Path != "/" {
		relPath = path.Join(c.ServerURL.Path, relPath)
	}
	relURL, err := url.Parse(relPath)
	if err != nil {
		return "", err
	}

	u := c.ServerURL.ResolveReference(relURL)
	return u.String(), nil
}

// ErrorResponse is a non 2xx answer from the backup service.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("backup service: status %d", e.StatusCode)
	}
	return fmt.Sprintf("backup service: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// checkResponse returns an *ErrorResponse for any non 2xx response and
// closes its body.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	errResp := &ErrorResponse{StatusCode: resp.StatusCode}
	buf, err := ioutil.ReadAll(resp.Body)
	if err == nil && len(buf) > 0 {
		if jerr := json.Unmarshal(buf, errResp); jerr != nil {
			errResp.Message = strings.TrimSpace(string(buf))
		}
	}
	return errResp
}

// IsNotFound reports whether err is a 404 from the backup service.
func IsNotFound(err error) bool {
	var errResp *ErrorResponse
	return errors.As(err, &errResp) && errResp.StatusCode == http.StatusNotFound
}

func decodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Annotate(err, "decode response")
	}
	return nil
}
