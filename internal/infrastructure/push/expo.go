package push

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/school-notify-api/internal/domain"
)

const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

// Expo sends through the Expo push service, which accepts
// ExponentPushToken[...] addresses and relays to FCM and APNs.
type Expo struct {
	httpClient *http.Client
	url        string
}

type expoMessage struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

func NewExpo(url string, timeout time.Duration) *Expo {
	if url == "" {
		url = DefaultExpoURL
	}
	return &Expo{httpClient: &http.Client{Timeout: timeout}, url: url}
}

func (e *Expo) Name() string { return "expo" }

func IsExpoToken(address string) bool {
	return strings.HasPrefix(address, "ExponentPushToken[") || strings.HasPrefix(address, "ExpoPushToken[")
}

func (e *Expo) Send(ctx context.Context, msg domain.PushMessage) error {
	if !IsExpoToken(msg.Address) {
		return fmt.Errorf("%w: not an Expo push token", ErrInvalidAddress)
	}
	payload, err := json.Marshal(expoMessage{
		To:       []string{msg.Address},
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: "high",
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var pushResp expoResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		return fmt.Errorf("decode expo response: %w", err)
	}
	if len(pushResp.Data) == 0 {
		return fmt.Errorf("expo response carried no ticket")
	}
	ticket := pushResp.Data[0]
	if ticket.Status == "ok" {
		return nil
	}
	if ticket.Details.Error == "DeviceNotRegistered" {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, ticket.Message)
	}
	return fmt.Errorf("expo ticket error %s: %s", ticket.Details.Error, ticket.Message)
}
