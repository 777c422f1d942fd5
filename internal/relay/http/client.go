package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"homelab-agent/internal/models"
)

// DefaultTimeout ограничивает один запрос к приемнику.
const DefaultTimeout = 10 * time.Second

// RelayClient отправляет инциденты на удаленный приемник (VPS) по HTTP.
type RelayClient struct {
	client *http.Client
	url    string
}

// NewRelayClient создает клиент. Пустой url отключает пересылку.
func NewRelayClient(url string, timeout time.Duration) *RelayClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RelayClient{
		client: &http.Client{
			Timeout: timeout,
		},
		url: url,
	}
}

// Relay отправляет конверт. Все ошибки классифицируются в RelayOutcome.
func (c *RelayClient) Relay(ctx context.Context, envelope models.RelayEnvelope) models.RelayOutcome {
	if c.url == "" {
		return models.RelayOutcome{ErrorKind: models.RelayDisabled, Error: "VPS_WEBHOOK_URL не задан"}
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return unexpected(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return unexpected(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK:
		return models.RelayOutcome{
			Success:    true,
			Message:    "Отправлено на VPS",
			Response:   string(respBody),
			StatusCode: resp.StatusCode,
		}
	case http.StatusNotFound:
		return models.RelayOutcome{
			ErrorKind:  models.RelayNotFound,
			Error:      fmt.Sprintf("Эндпоинт не найден (404). Проверьте URL: %s", c.url),
			StatusCode: resp.StatusCode,
		}
	default:
		return models.RelayOutcome{
			ErrorKind:  models.RelayHTTPStatus,
			Error:      fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
			StatusCode: resp.StatusCode,
		}
	}
}

func classify(err error) models.RelayOutcome {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.RelayOutcome{ErrorKind: models.RelayTimeout, Error: "Таймаут при отправке на VPS"}
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return models.RelayOutcome{ErrorKind: models.RelayConnection, Error: fmt.Sprintf("Ошибка подключения к VPS: %v", err)}
	}
	return unexpected(err)
}

func unexpected(err error) models.RelayOutcome {
	return models.RelayOutcome{ErrorKind: models.RelayUnexpected, Error: fmt.Sprintf("Неожиданная ошибка при отправке на VPS: %v", err)}
}
