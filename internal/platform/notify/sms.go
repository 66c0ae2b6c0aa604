package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrNoPhone means the recipient has no SMS number on file.
var ErrNoPhone = errors.New("recipient has no phone number")

const (
	smsLiveURL    = "https://api.africastalking.com/version1/messaging"
	smsSandboxURL = "https://api.sandbox.africastalking.com/version1/messaging"
)

// SMSConfig holds Africa's Talking credentials.
type SMSConfig struct {
	APIKey   string
	Username string
	SenderID string
	// Env selects the sandbox or live endpoint. Anything other than
	// "production" uses the sandbox.
	Env string
}

// SMSChannel delivers notifications as text messages through the Africa's
// Talking HTTP API.
type SMSChannel struct {
	cfg    SMSConfig
	apiURL string
	client *http.Client
}

// NewSMSChannel constructs an SMSChannel. The http.Client carries no timeout
// of its own; the per-attempt context bounds each request.
func NewSMSChannel(cfg SMSConfig) *SMSChannel {
	apiURL := smsSandboxURL
	if cfg.Env == "production" {
		apiURL = smsLiveURL
	}
	return &SMSChannel{
		cfg:    cfg,
		apiURL: apiURL,
		client: &http.Client{},
	}
}

func (s *SMSChannel) Name() string {
	return ChannelSMS
}

// smsResponse mirrors the provider's response envelope. A message is accepted
// when its status code is in the 100 range.
type smsResponse struct {
	SMSMessageData struct {
		Recipients []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (s *SMSChannel) Send(ctx context.Context, msg Message) error {
	if msg.Recipient.Phone == "" {
		return ErrNoPhone
	}

	form := url.Values{}
	form.Set("username", s.cfg.Username)
	form.Set("to", msg.Recipient.Phone)
	form.Set("message", msg.Body)
	if s.cfg.SenderID != "" {
		form.Set("from", s.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}

	var body smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}

	for _, r := range body.SMSMessageData.Recipients {
		if r.StatusCode >= 100 && r.StatusCode < 200 {
			return nil
		}
	}
	return fmt.Errorf("sms provider rejected message for %s", msg.Recipient.Phone)
}
