// Package notify delivers the single end-of-run status message through the
// CallMeBot WhatsApp gateway. Delivery is best-effort: errors are reported
// in the result and never escalate.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the notification operation.
type Service interface {
	Send(ctx context.Context, cfg models.NotifyConfig, text string) (*models.NotifyResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the notify Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new notify service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		baseURL: "https://api.callmebot.com",
	}
}

// NewWithClient creates a new notify service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// Send dispatches one WhatsApp message. There are no retries: the run's
// summary always reaches stdout regardless of delivery.
func (s *Impl) Send(ctx context.Context, cfg models.NotifyConfig, text string) (*models.NotifyResult, error) {
	result := &models.NotifyResult{}

	s.logger.Info().Str("phone", cfg.Phone).Msg("sending WhatsApp notification")

	q := url.Values{}
	q.Set("phone", cfg.Phone)
	q.Set("apikey", cfg.APIKey)
	q.Set("text", text)
	endpoint := fmt.Sprintf("%s/whatsapp.php?%s", s.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result, nil
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("failed to send request: %w", err)
		return result, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("notification gateway returned status %d", resp.StatusCode)
		return result, nil
	}

	result.MessageSent = true
	s.logger.Info().Msg("WhatsApp notification sent")

	return result, nil
}
