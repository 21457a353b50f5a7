package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Service is the set of backend actions the orchestrator can execute.
type Service interface {
	CustomerInfo(ctx context.Context, ban string) (*Customer, error)
	LoopLength(ctx context.Context, ban string) (*Loop, error)
	RecommendProfile(ctx context.Context, loopLength string) (*Recommendation, error)
	CurrentCharge(ctx context.Context, ban string) (*Charge, error)
	SubmitOrder(ctx context.Context, ban, profile string) (*Order, error)
}

// Client talks to the ERP backend over HTTP. The HTTP client is injected so
// executors share one transport and stay independently testable.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	limiter    *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRateLimit caps outbound calls per second with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient creates an ERP client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    15 * time.Second,
		limiter:    rate.NewLimiter(rate.Every(time.Second/10), 20),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CustomerInfo looks up the customer record for the account.
func (c *Client) CustomerInfo(ctx context.Context, ban string) (*Customer, error) {
	status, body, err := c.get(ctx, "/customers", url.Values{"ban": {ban}})
	if err != nil {
		return nil, errors.Wrap(err, "customer lookup failed")
	}
	if status != http.StatusOK {
		return &Customer{Err: httpStatusError(status)}, nil
	}

	var list []map[string]any
	if err := json.Unmarshal(body, &list); err != nil {
		// The backend reports business errors as an object, not an array.
		if soft := softErrorFromBody(body); soft != "" {
			return &Customer{Err: soft}, nil
		}
		return nil, errors.Wrap(err, "failed to decode customer response")
	}
	if len(list) == 0 {
		return &Customer{Err: "No customer found"}, nil
	}

	first := list[0]
	charges, _ := first["charges"].(map[string]any)
	return &Customer{
		Name:           str(first["name"]),
		Address:        str(first["address"]),
		ServiceProfile: str(first["serviceProfile"]),
		ServiceOTC:     str(charges["serviceOtc"]),
		ServiceMRC:     str(charges["serviceMrc"]),
		EquipOTC:       str(charges["equipmentOtc"]),
		EquipMRC:       str(charges["equipmentMrc"]),
	}, nil
}

// LoopLength looks up the copper loop length for the account. A 404 with an
// error payload is reported as "404: <message>" so the dialog tree can show
// the backend's own wording.
func (c *Client) LoopLength(ctx context.Context, ban string) (*Loop, error) {
	status, body, err := c.get(ctx, "/customers/loopLength", url.Values{"ban": {ban}})
	if err != nil {
		return nil, errors.Wrap(err, "loop length lookup failed")
	}
	fields := decodeObject(body)
	if status != http.StatusOK {
		if status == http.StatusNotFound && str(fields["error"]) != "" {
			return &Loop{Err: "404: " + str(fields["error"])}, nil
		}
		return &Loop{Err: httpStatusError(status)}, nil
	}
	if soft := str(fields["error"]); soft != "" {
		return &Loop{Err: soft}, nil
	}
	return &Loop{Length: str(fields["loopLength"])}, nil
}

// RecommendProfile asks for the best service profile for a loop length.
func (c *Client) RecommendProfile(ctx context.Context, loopLength string) (*Recommendation, error) {
	status, body, err := c.get(ctx, "/serviceprofiles/recommend", url.Values{"loopLength": {loopLength}})
	if err != nil {
		return nil, errors.Wrap(err, "profile recommendation failed")
	}
	fields := decodeObject(body)
	if status != http.StatusOK {
		return &Recommendation{Err: httpStatusError(status)}, nil
	}
	if soft := str(fields["error"]); soft != "" {
		return &Recommendation{Err: soft}, nil
	}
	return &Recommendation{
		Profile: str(fields["maxBRDownstream"]) + "/" + str(fields["maxBRUpstream"]),
		Name:    str(fields["name"]),
		ID:      str(fields["_id"]),
		MRC:     str(fields["mrc"]),
	}, nil
}

// CurrentCharge looks up the current monthly recurring charge.
func (c *Client) CurrentCharge(ctx context.Context, ban string) (*Charge, error) {
	status, body, err := c.get(ctx, "/customers/mrc", url.Values{"ban": {ban}})
	if err != nil {
		return nil, errors.Wrap(err, "current charge lookup failed")
	}
	fields := decodeObject(body)
	if status != http.StatusOK {
		return &Charge{Err: httpStatusError(status)}, nil
	}
	if soft := str(fields["error"]); soft != "" {
		return &Charge{Err: soft}, nil
	}
	return &Charge{
		Current: str(fields["serviceMrc"]),
		New:     str(fields["newMrc"]),
	}, nil
}

// SubmitOrder submits a profile-change order for the account.
func (c *Client) SubmitOrder(ctx context.Context, ban, profile string) (*Order, error) {
	form := url.Values{"ban": {ban}, "profile": {profile}}
	status, body, err := c.do(ctx, http.MethodPost, "/serviceorders", nil, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "order submission failed")
	}
	fields := decodeObject(body)
	if status != http.StatusOK {
		return &Order{Err: httpStatusError(status)}, nil
	}
	if soft := str(fields["error"]); soft != "" {
		return &Order{Err: soft}, nil
	}
	return &Order{Number: str(fields["orderNumber"])}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body *strings.Reader) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var buf []byte
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var raw json.RawMessage
	if err := decoder.Decode(&raw); err == nil {
		buf = raw
	}
	return resp.StatusCode, buf, nil
}

// decodeObject decodes a JSON object body, tolerating absent or non-object
// payloads by returning an empty map.
func decodeObject(body []byte) map[string]any {
	fields := map[string]any{}
	if len(body) == 0 {
		return fields
	}
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.UseNumber()
	_ = decoder.Decode(&fields)
	return fields
}

func softErrorFromBody(body []byte) string {
	return str(decodeObject(body)["error"])
}

func httpStatusError(status int) string {
	return fmt.Sprintf("Error http status: %d", status)
}

// str renders a decoded JSON scalar as a string; the simulator mixes string
// and numeric representations for charges and loop lengths.
func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

var _ Service = (*Client)(nil)
