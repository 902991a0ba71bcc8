package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"journal-insights/internal/domain"
	"journal-insights/internal/infra/metrics"
)

// Client проверяет bearer-токены через userinfo-эндпоинт провайдера.
type Client struct {
	http        *http.Client
	userinfoURL string
}

var _ domain.IdentityVerifier = (*Client)(nil)

// NewClient создаёт проверяющего. userinfoURL — полный адрес userinfo.
func NewClient(userinfoURL string) (*Client, error) {
	if strings.TrimSpace(userinfoURL) == "" {
		return nil, errors.New("userinfo url is empty")
	}
	return &Client{
		http:        &http.Client{Timeout: 10 * time.Second},
		userinfoURL: userinfoURL,
	}, nil
}

type userinfoResponse struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Verify обменивает токен на личность. Любой не-200 ответ — отказ.
func (c *Client) Verify(ctx context.Context, token string) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("identity", "userinfo", req.URL.Host, start, err)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("запрос userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return domain.Identity{}, fmt.Errorf("userinfo: статус %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Identity{}, fmt.Errorf("декодирование userinfo: %w", err)
	}
	if parsed.Subject == "" {
		return domain.Identity{}, errors.New("userinfo: пустой subject")
	}
	return domain.Identity{
		Subject:       parsed.Subject,
		Email:         parsed.Email,
		EmailVerified: parsed.EmailVerified,
	}, nil
}
