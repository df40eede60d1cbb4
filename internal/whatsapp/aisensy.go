package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// AiSensyProvider sends campaign templates through AiSensy. AiSensy does not return a
// message id and cannot send free-form text.
type AiSensyProvider struct {
	apiKey      string
	baseURL     string
	countryCode string
	client      *http.Client
}

func NewAiSensyProvider(apiKey, baseURL, countryCode string, client *http.Client) *AiSensyProvider {
	if baseURL == "" {
		baseURL = "https://backend.aisensy.com/campaign/t1/api/v2"
	}
	return &AiSensyProvider{apiKey: apiKey, baseURL: baseURL, countryCode: countryCode, client: client}
}

func (p *AiSensyProvider) Name() string { return ProviderAiSensy }

// ErrTextNotSupported is returned by providers that only send templates
var ErrTextNotSupported = errors.New("provider does not support free-form text messages")

func (p *AiSensyProvider) SendText(ctx context.Context, to, body string) (string, error) {
	return "", ErrTextNotSupported
}

func (p *AiSensyProvider) SendTemplate(ctx context.Context, msg TemplateMessage) (string, error) {
	destination, err := NormalizePhone(msg.To, p.countryCode)
	if err != nil {
		return "", err
	}
	userName := msg.Variables["name"]
	if userName == "" {
		userName = "Customer"
	}
	params := OrderedValues(withoutKey(msg.Variables, "name"))

	payload := map[string]interface{}{
		"apiKey":         p.apiKey,
		"campaignName":   msg.TemplateName,
		"destination":    destination,
		"userName":       userName,
		"templateParams": params,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: ProviderAiSensy, StatusCode: resp.StatusCode, Message: string(body)}
	}
	return "", nil
}

func withoutKey(m map[string]string, key string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}
