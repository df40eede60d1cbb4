package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type MetaConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string // v19.0
	BaseURL       string // https://graph.facebook.com
	CountryCode   string
}

// MetaProvider sends through the WhatsApp Business Cloud API (Graph API)
type MetaProvider struct {
	cfg    MetaConfig
	client *http.Client
}

func NewMetaProvider(cfg MetaConfig, client *http.Client) *MetaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v19.0"
	}
	return &MetaProvider{cfg: cfg, client: client}
}

func (p *MetaProvider) Name() string { return ProviderMeta }

func (p *MetaProvider) SendTemplate(ctx context.Context, msg TemplateMessage) (string, error) {
	to, err := NormalizePhone(msg.To, p.cfg.CountryCode)
	if err != nil {
		return "", err
	}

	components := []map[string]interface{}{}
	if params := OrderedValues(msg.Variables); len(params) > 0 {
		bodyParams := make([]map[string]string, len(params))
		for i, param := range params {
			bodyParams[i] = map[string]string{"type": "text", "text": param}
		}
		components = append(components, map[string]interface{}{
			"type":       "body",
			"parameters": bodyParams,
		})
	}

	language := msg.Language
	if language == "" {
		language = "en"
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "template",
		"template": map[string]interface{}{
			"name":       msg.TemplateName,
			"language":   map[string]string{"code": language},
			"components": components,
		},
	}
	return p.sendRequest(ctx, payload)
}

func (p *MetaProvider) SendText(ctx context.Context, to, body string) (string, error) {
	digits, err := NormalizePhone(to, p.cfg.CountryCode)
	if err != nil {
		return "", err
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                digits,
		"type":              "text",
		"text": map[string]interface{}{
			"preview_url": false,
			"body":        body,
		},
	}
	return p.sendRequest(ctx, payload)
}

func (p *MetaProvider) sendRequest(ctx context.Context, payload map[string]interface{}) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", p.cfg.BaseURL, p.cfg.APIVersion, p.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
		Error *struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := string(body)
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return "", &APIError{Provider: ProviderMeta, StatusCode: resp.StatusCode, Message: msg}
	}
	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}
