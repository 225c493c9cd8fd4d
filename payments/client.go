package payments

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

	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// Client is the HTTP transport shared by one gateway's calls. The timeout
// bounds every initiation call; a timed-out initiation leaves the order
// untouched because nothing is persisted until the gateway answered.
type Client struct {
	http    *http.Client
	breaker *breaker
	logger  *zap.Logger
}

func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		breaker: newBreaker(5, 30*time.Second),
		logger:  logger,
	}
}

func (c *Client) PostJSON(ctx context.Context, endpoint string, headers map[string]string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}
	return c.post(ctx, endpoint, "application/json", headers, bytes.NewReader(payload), out)
}

func (c *Client) PostForm(ctx context.Context, endpoint string, headers map[string]string, form url.Values, out any) error {
	return c.post(ctx, endpoint, "application/x-www-form-urlencoded", headers,
		strings.NewReader(form.Encode()), out)
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, headers map[string]string, body io.Reader, out any) error {
	return c.breaker.do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return fmt.Errorf("failed to build gateway request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("Gateway call failed", zap.String("endpoint", endpoint), zap.Error(err))
			return fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading response: %v", models.ErrGatewayUnavailable, err)
		}
		if resp.StatusCode >= 400 {
			c.logger.Warn("Gateway returned error status",
				zap.String("endpoint", endpoint),
				zap.Int("status", resp.StatusCode),
			)
			return fmt.Errorf("%w: status %d", models.ErrGatewayUnavailable, resp.StatusCode)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", models.ErrGatewayUnavailable, err)
		}
		return nil
	})
}
