package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// resultHeader is the envelope both NHN Cloud APIs put on every response.
type resultHeader struct {
	IsSuccessful  bool   `json:"isSuccessful"`
	ResultCode    int    `json:"resultCode"`
	ResultMessage string `json:"resultMessage"`
}

func (h resultHeader) code() string {
	return strconv.Itoa(h.ResultCode)
}

// httpClient carries the pieces shared by the channel adapters: credentials, throttling and
// JSON decoding.
type httpClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
	limiter   *rate.Limiter
	log       *zap.Logger
}

func newHTTPClient(baseURL, secretKey string, timeout time.Duration, perSecond int, log *zap.Logger) *httpClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = perSecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &httpClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		log:       log,
	}
}

// do sends one request and decodes the JSON body into out. The HTTP status is not checked on its
// own: a body carrying a result header is a provider answer whatever the status.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return transportErr("rate wait", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("X-Secret-Key", c.secretKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr(method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return transportErr("read body", err)
	}
	c.log.Debug("provider call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if err := json.Unmarshal(raw, out); err != nil {
		return transportErr(fmt.Sprintf("decode %d response", resp.StatusCode), err)
	}
	return nil
}

func pageQuery(p Page) url.Values {
	q := url.Values{}
	q.Set("pageNum", strconv.Itoa(p.PageNum))
	q.Set("pageSize", strconv.Itoa(p.PageSize))
	return q
}
