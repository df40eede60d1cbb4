// Package whatsapp talks to WhatsApp Business providers (Twilio, Meta Cloud API, AiSensy)
// and parses their webhooks.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"travel-backend/internal/config"
)

// Provider names
const (
	ProviderTwilio  = "twilio"
	ProviderMeta    = "meta"
	ProviderAiSensy = "aisensy"
)

// TemplateMessage is a pre-approved template addressed to one phone number.
// For Twilio TemplateName is the Content SID.
type TemplateMessage struct {
	To           string
	TemplateName string
	Language     string
	Variables    map[string]string
}

// Provider sends WhatsApp messages. Both send methods return the provider's message id,
// which may be empty for providers that do not report one.
type Provider interface {
	SendTemplate(ctx context.Context, msg TemplateMessage) (string, error)
	// SendText sends a free-form message; providers accept it only inside the 24h session window
	SendText(ctx context.Context, to, body string) (string, error)
	Name() string
}

// APIError is a non-2xx provider response
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// ErrUnknownProvider is returned for a provider name that is not configured
var ErrUnknownProvider = errors.New("whatsapp provider not configured")

// Registry holds the configured providers by name
type Registry map[string]Provider

// Get returns the provider called name
func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the configured providers
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistry builds every provider that has credentials in cfg
func NewRegistry(cfg *config.Config, client *http.Client) Registry {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	wa := cfg.WhatsApp
	reg := Registry{}
	if wa.Twilio.AccountSID != "" && wa.Twilio.AuthToken != "" {
		reg[ProviderTwilio] = NewTwilioProvider(TwilioConfig{
			AccountSID:        wa.Twilio.AccountSID,
			AuthToken:         wa.Twilio.AuthToken,
			From:              wa.Twilio.From,
			BaseURL:           wa.Twilio.BaseURL,
			StatusCallbackURL: wa.Twilio.StatusCallbackURL,
			CountryCode:       wa.DefaultCountryCode,
		}, client)
	}
	if wa.Meta.AccessToken != "" && wa.Meta.PhoneNumberID != "" {
		reg[ProviderMeta] = NewMetaProvider(MetaConfig{
			AccessToken:   wa.Meta.AccessToken,
			PhoneNumberID: wa.Meta.PhoneNumberID,
			APIVersion:    wa.Meta.APIVersion,
			BaseURL:       wa.Meta.BaseURL,
			CountryCode:   wa.DefaultCountryCode,
		}, client)
	}
	if wa.AiSensy.APIKey != "" {
		reg[ProviderAiSensy] = NewAiSensyProvider(wa.AiSensy.APIKey, wa.AiSensy.BaseURL, wa.DefaultCountryCode, client)
	}
	return reg
}

// OrderedValues returns the variable values ordered by key. Numeric keys ("1", "2", "10")
// sort numerically, which is how positional template placeholders are numbered.
func OrderedValues(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = vars[k]
	}
	return values
}
