package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StatusUpdate is a delivery receipt for a message we sent
type StatusUpdate struct {
	Provider     string
	MessageID    string
	Status       string // one of the recipient statuses (sent, delivered, read, failed)
	ErrorMessage string
	Timestamp    time.Time
}

// InboundMessage is a message a customer sent to us
type InboundMessage struct {
	Provider  string
	MessageID string
	From      string
	Body      string
	Timestamp time.Time
}

// MapStatus converts a provider status to a recipient status. Intermediate states
// (queued, accepted, sending) report false.
func MapStatus(providerStatus string) (string, bool) {
	switch strings.ToLower(providerStatus) {
	case "sent":
		return "sent", true
	case "delivered":
		return "delivered", true
	case "read":
		return "read", true
	case "failed", "undelivered":
		return "failed", true
	}
	return "", false
}

// TwilioSignature computes X-Twilio-Signature: base64(HMAC-SHA1(authToken, url + sorted key/value pairs))
func TwilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyTwilioSignature checks the X-Twilio-Signature header in constant time
func VerifyTwilioSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	expected := TwilioSignature(authToken, fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseTwilioWebhook reads a status callback or an inbound message from the form body
func ParseTwilioWebhook(form url.Values, now time.Time) (*StatusUpdate, *InboundMessage) {
	sid := form.Get("MessageSid")
	if status := form.Get("MessageStatus"); status != "" && status != "received" {
		mapped, ok := MapStatus(status)
		if !ok {
			return nil, nil
		}
		errMsg := form.Get("ErrorMessage")
		if errMsg == "" && form.Get("ErrorCode") != "" {
			errMsg = "twilio error " + form.Get("ErrorCode")
		}
		return &StatusUpdate{
			Provider:     ProviderTwilio,
			MessageID:    sid,
			Status:       mapped,
			ErrorMessage: errMsg,
			Timestamp:    now,
		}, nil
	}
	if from := form.Get("From"); from != "" {
		return nil, &InboundMessage{
			Provider:  ProviderTwilio,
			MessageID: sid,
			From:      strings.TrimPrefix(from, "whatsapp:"),
			Body:      form.Get("Body"),
			Timestamp: now,
		}
	}
	return nil, nil
}

// MetaSignature computes X-Hub-Signature-256: "sha256=" + hex(HMAC-SHA256(appSecret, body))
func MetaSignature(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyMetaSignature checks the X-Hub-Signature-256 header in constant time
func VerifyMetaSignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" || header == "" {
		return false
	}
	return hmac.Equal([]byte(MetaSignature(appSecret, body)), []byte(header))
}

type metaWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Statuses []struct {
					ID        string `json:"id"`
					Status    string `json:"status"`
					Timestamp string `json:"timestamp"`
					Errors    []struct {
						Code  int    `json:"code"`
						Title string `json:"title"`
					} `json:"errors"`
				} `json:"statuses"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseMetaWebhook extracts status updates and inbound messages from a Cloud API notification
func ParseMetaWebhook(body []byte) ([]StatusUpdate, []InboundMessage, error) {
	var payload metaWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	var statuses []StatusUpdate
	var inbound []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, s := range change.Value.Statuses {
				mapped, ok := MapStatus(s.Status)
				if !ok {
					continue
				}
				update := StatusUpdate{
					Provider:  ProviderMeta,
					MessageID: s.ID,
					Status:    mapped,
					Timestamp: unixSeconds(s.Timestamp),
				}
				if len(s.Errors) > 0 {
					update.ErrorMessage = fmt.Sprintf("%d: %s", s.Errors[0].Code, s.Errors[0].Title)
				}
				statuses = append(statuses, update)
			}
			for _, m := range change.Value.Messages {
				inbound = append(inbound, InboundMessage{
					Provider:  ProviderMeta,
					MessageID: m.ID,
					From:      m.From,
					Body:      m.Text.Body,
					Timestamp: unixSeconds(m.Timestamp),
				})
			}
		}
	}
	return statuses, inbound, nil
}

func unixSeconds(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(n, 0).UTC()
}
