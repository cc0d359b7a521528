package flickr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"flickrmirror/pkg/config"
	errs "flickrmirror/pkg/errors"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/ratelimit"
)

// ErrMissingCredentials is returned when no API key and secret are configured
var ErrMissingCredentials = errors.New("flickr api key and secret are required")

const userAgent = "flickrmirror/1.0 (+https://github.com/flickrmirror)"

// Options configures a Client
type Options struct {
	Endpoint    string
	Credentials Credentials
	// Timeout bounds each REST call
	Timeout time.Duration
	// DownloadTimeout bounds each binary transfer attempt
	DownloadTimeout time.Duration
	// Pacer spaces calls; nil disables pauses
	Pacer ratelimit.Pauser
	// Clock stamps OAuth signatures
	Clock      clockwork.Clock
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client talks to the Flickr REST API and photo CDN
type Client struct {
	httpClient      *http.Client
	endpoint        string
	creds           Credentials
	callTimeout     time.Duration
	downloadTimeout time.Duration
	pacer           ratelimit.Pauser
	clock           clockwork.Clock
	nonce           func() string
	logger          logger.Logger
}

// NewClient creates a Flickr client
func NewClient(opts Options) (*Client, error) {
	if opts.Credentials.APIKey == "" || opts.Credentials.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 5 * time.Minute
	}
	if opts.Pacer == nil {
		opts.Pacer = ratelimit.NoWait{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	httpClient := *opts.HTTPClient
	httpClient.Timeout = 0 // per-request contexts carry the deadlines

	return &Client{
		httpClient:      &httpClient,
		endpoint:        opts.Endpoint,
		creds:           opts.Credentials,
		downloadTimeout: opts.DownloadTimeout,
		pacer:           opts.Pacer,
		clock:           opts.Clock,
		nonce:           newNonce,
		logger:          opts.Logger.WithField("component", "flickr"),
		callTimeout:     opts.Timeout,
	}, nil
}

// NewClientFromConfig creates a client from the loaded configuration
func NewClientFromConfig(cfg *config.Config, pacer ratelimit.Pauser, clock clockwork.Clock, log logger.Logger) (*Client, error) {
	return NewClient(Options{
		Endpoint: cfg.Flickr.Endpoint,
		Credentials: Credentials{
			APIKey:           cfg.Flickr.APIKey,
			APISecret:        cfg.Flickr.APISecret,
			OAuthToken:       cfg.Flickr.OAuthToken,
			OAuthTokenSecret: cfg.Flickr.OAuthTokenSecret,
		},
		DownloadTimeout: cfg.Mirror.DownloadTimeout,
		Pacer:           pacer,
		Clock:           clock,
		Logger:          log,
	})
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request, op string) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)

	start := c.clock.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"op":     op,
		"method": req.Method,
		"host":   req.URL.Host,
	})

	resp, err := c.httpClient.Do(req)
	duration := c.clock.Since(start)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil && errors.Is(err, context.Canceled) {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"op":       op,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.KindRetryable, op, err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// checkResponseStatus converts a non-2xx response into a typed error
func (c *Client) checkResponseStatus(resp *http.Response, op string) error {
	err := errs.FromStatus(op, resp.StatusCode)
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{
		"op":     op,
		"status": resp.StatusCode,
		"kind":   string(errs.KindOf(err)),
	}
	switch errs.KindOf(err) {
	case errs.KindRateLimited:
		c.logger.WarnWithFields("rate limit exceeded", fields)
	case errs.KindRetryable:
		c.logger.WarnWithFields("server error", fields)
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
	}
	return err
}

// Call invokes a REST method and decodes its payload into target.
// A courtesy pause follows every call that reached the server.
func (c *Client) Call(ctx context.Context, method string, params url.Values, target interface{}) error {
	answered, err := c.call(ctx, method, params, target)
	if answered {
		if perr := c.pacer.Courtesy(ctx); perr != nil && err == nil {
			return perr
		}
	}
	return err
}

// call reports whether the server answered, alongside the outcome
func (c *Client) call(ctx context.Context, method string, params url.Values, target interface{}) (bool, error) {
	query := url.Values{}
	for k, vs := range params {
		query[k] = append([]string(nil), vs...)
	}
	query.Set("method", method)
	query.Set("format", "json")
	query.Set("nojsoncallback", "1")
	query.Set("api_key", c.creds.APIKey)
	if c.creds.HasToken() {
		c.creds.signParams(http.MethodGet, c.endpoint, query, c.nonce(), c.clock.Now())
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return false, errs.Wrap(errs.KindFatal, method, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.doRequest(req, method)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp, method); err != nil {
		return true, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, &errs.Error{Kind: errs.KindRetryable, Op: method, Code: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logParseFailure(method, resp.StatusCode, body, err)
		return true, &errs.Error{Kind: errs.KindRetryable, Op: method, Code: resp.StatusCode, Message: fmt.Sprintf("failed to parse JSON: %v", err)}
	}
	if env.Stat != "ok" {
		c.logger.WarnWithFields("flickr API error", map[string]interface{}{
			"op":      method,
			"code":    int(env.Code),
			"message": env.Message,
		})
		return true, errs.New(kindForAPICode(int(env.Code)), method, int(env.Code), env.Message)
	}

	if target == nil {
		return true, nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		c.logParseFailure(method, resp.StatusCode, body, err)
		return true, &errs.Error{Kind: errs.KindFatal, Op: method, Code: resp.StatusCode, Message: fmt.Sprintf("unexpected response shape: %v", err)}
	}
	return true, nil
}

func (c *Client) logParseFailure(method string, status int, body []byte, err error) {
	bodyPreview := string(body)
	if len(bodyPreview) > 200 {
		bodyPreview = bodyPreview[:200] + "..."
	}
	c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
		"op":           method,
		"status":       status,
		"error":        err.Error(),
		"body_preview": bodyPreview,
	})
}

// kindForAPICode classifies a stat=fail response. 105 is "service currently unavailable".
func kindForAPICode(code int) errs.Kind {
	switch code {
	case 0, 105:
		return errs.KindRetryable
	default:
		return errs.KindFatal
	}
}

// Search fetches one page of a user's photos with the original-file extras
func (c *Client) Search(ctx context.Context, userID string, page, perPage int) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.Call(ctx, MethodSearch, SearchParams(userID, page, perPage), &resp); err != nil {
		return nil, err
	}
	// an empty block would read as the end of the catalog
	if resp.Photos == nil {
		return nil, errs.New(errs.KindRetryable, MethodSearch, 0, "response has no photos block")
	}
	return &resp, nil
}

// GetInfo fetches the detail record of a photo
func (c *Client) GetInfo(ctx context.Context, photoID string) (*PhotoInfo, error) {
	var resp InfoResponse
	if err := c.Call(ctx, MethodGetInfo, PhotoParams(photoID), &resp); err != nil {
		return nil, err
	}
	if resp.Photo == nil {
		return nil, errs.New(errs.KindFatal, MethodGetInfo, 0, "response has no photo block")
	}
	return resp.Photo, nil
}

// GetComments fetches the comments of a photo in posting order
func (c *Client) GetComments(ctx context.Context, photoID string) ([]Comment, error) {
	var resp CommentsResponse
	if err := c.Call(ctx, MethodGetComments, PhotoParams(photoID), &resp); err != nil {
		return nil, err
	}
	if resp.Comments == nil {
		return nil, errs.New(errs.KindFatal, MethodGetComments, 0, "response has no comments block")
	}
	return resp.Comments.Comment, nil
}

// TestLogin returns the account the configured token belongs to
func (c *Client) TestLogin(ctx context.Context) (*User, error) {
	var resp LoginResponse
	if err := c.Call(ctx, MethodTestLogin, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User.ID == "" {
		return nil, errs.New(errs.KindFatal, MethodTestLogin, 0, "response has no user id")
	}
	return &resp.User, nil
}
