// Package notify доставляет события изменения уровня продавца во внешние системы.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
)

// ErrRateLimited возвращается, если маркетплейс повторно ответил 429.
var ErrRateLimited = errors.New("webhook rate limited")

const maxRetryAfter = 30 * time.Second

// WebhookClient инкапсулирует HTTP-взаимодействие с маркетплейсом.
type WebhookClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewWebhookClient создаёт HTTP-клиент для уведомления маркетплейса по указанному адресу.
func NewWebhookClient(baseURL string) *WebhookClient {
	return &WebhookClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Name возвращает имя канала доставки для логов.
func (c *WebhookClient) Name() string {
	return "webhook"
}

// PublishTierChanged отправляет событие смены уровня продавца.
// На ответ 429 клиент один раз ждёт Retry-After (не дольше 30 секунд) и повторяет запрос.
func (c *WebhookClient) PublishTierChanged(ctx context.Context, event model.TierChangedEvent) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("webhook client not configured")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	retryAfter, err := c.post(ctx, event.SellerUID, body)
	if !errors.Is(err, ErrRateLimited) {
		return err
	}

	if retryAfter > maxRetryAfter {
		return err
	}
	if retryAfter > 0 {
		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	_, err = c.post(ctx, event.SellerUID, body)
	return err
}

func (c *WebhookClient) post(ctx context.Context, sellerUID string, body []byte) (time.Duration, error) {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	endpoint := fmt.Sprintf("%s/api/sellers/%s/tier-events", base, url.PathEscape(sellerUID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return retryAfter, ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return 0, nil
}
