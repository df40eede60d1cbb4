package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	From              string // sender number, any format NormalizePhone accepts
	BaseURL           string // https://api.twilio.com
	StatusCallbackURL string
	CountryCode       string
}

// TwilioProvider sends through the Twilio Messages API. Templates are Content API
// templates addressed by Content SID.
type TwilioProvider struct {
	cfg    TwilioConfig
	client *http.Client
}

func NewTwilioProvider(cfg TwilioConfig, client *http.Client) *TwilioProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	return &TwilioProvider{cfg: cfg, client: client}
}

func (p *TwilioProvider) Name() string { return ProviderTwilio }

func (p *TwilioProvider) address(phone string) (string, error) {
	digits, err := NormalizePhone(phone, p.cfg.CountryCode)
	if err != nil {
		return "", err
	}
	return "whatsapp:+" + digits, nil
}

func (p *TwilioProvider) SendTemplate(ctx context.Context, msg TemplateMessage) (string, error) {
	form := url.Values{}
	form.Set("ContentSid", msg.TemplateName)
	if len(msg.Variables) > 0 {
		vars, err := json.Marshal(msg.Variables)
		if err != nil {
			return "", fmt.Errorf("failed to marshal content variables: %w", err)
		}
		form.Set("ContentVariables", string(vars))
	}
	return p.send(ctx, msg.To, form)
}

func (p *TwilioProvider) SendText(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("Body", body)
	return p.send(ctx, to, form)
}

func (p *TwilioProvider) send(ctx context.Context, to string, form url.Values) (string, error) {
	toAddr, err := p.address(to)
	if err != nil {
		return "", err
	}
	fromAddr, err := p.address(p.cfg.From)
	if err != nil {
		return "", fmt.Errorf("invalid sender number: %w", err)
	}
	form.Set("To", toAddr)
	form.Set("From", fromAddr)
	if p.cfg.StatusCallbackURL != "" {
		form.Set("StatusCallback", p.cfg.StatusCallbackURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.cfg.BaseURL, p.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var result struct {
		SID     string `json:"sid"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Message
		if msg == "" {
			msg = string(body)
		}
		return "", &APIError{Provider: ProviderTwilio, StatusCode: resp.StatusCode, Message: msg}
	}
	return result.SID, nil
}
