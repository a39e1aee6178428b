package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrMissingMessageID = errors.New("missing messageId")
)

const maxResponseBody = 64 << 10

// RelayClient posts outbound messages to an external sending relay and
// returns the id it assigns.
type RelayClient struct {
	url    string
	client *http.Client
}

func NewRelayClient(url string, timeout time.Duration) *RelayClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RelayClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type relayRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type relayResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

func (c *RelayClient) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	reqBody, err := json.Marshal(relayRequest{
		PhoneNumber: phoneNumber,
		Message:     message,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return "", fmt.Errorf("%w: %d body=%q", ErrUnexpectedStatus, resp.StatusCode, string(body))
	}

	var rr relayResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if rr.MessageID == "" {
		return "", fmt.Errorf("%w in response body=%q", ErrMissingMessageID, string(body))
	}
	return rr.MessageID, nil
}
