package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"thirdwatch.dev/watch/internal/model"
)

const (
	userAgent       = "thirdwatch/1.0 (+https://thirdwatch.dev)"
	signatureHeader = "X-Thirdwatch-Signature"
	timestampHeader = "X-Thirdwatch-Timestamp"
	signaturePrefix = "sha256="
	adapterTimeout  = 10 * time.Second
)

// webhookPayload is the wire shape posted to webhook channels. Receivers
// verify the signature over these exact bytes, so the body is sent as
// serialized, unmodified.
type webhookPayload struct {
	Event      model.ChangeEvent      `json:"event"`
	Assessment model.ImpactAssessment `json:"assessment"`
	Repository string                 `json:"repository,omitempty"`
}

// WebhookAdapter posts JSON to an arbitrary HTTPS endpoint. Every request
// carries an HMAC-SHA256 signature keyed on the channel secret so the
// receiver can authenticate the sender.
type WebhookAdapter struct {
	url    string
	secret []byte
	http   *http.Client
}

func NewWebhookAdapter(url, secret string, client *http.Client) *WebhookAdapter {
	if client == nil {
		client = &http.Client{Timeout: adapterTimeout}
	}
	return &WebhookAdapter{url: url, secret: []byte(secret), http: client}
}

func (w *WebhookAdapter) Send(ctx context.Context, n Notification) (*Delivery, error) {
	body, err := json.Marshal(webhookPayload{
		Event:      n.Event,
		Assessment: n.Assessment,
		Repository: n.Repository,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(signatureHeader, signaturePrefix+Sign(w.secret, body))
	req.Header.Set(timestampHeader, strconv.FormatInt(time.Now().Unix(), 10))

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return &Delivery{URL: w.url}, nil
}

// Sign computes the hex HMAC-SHA256 of body under key. Exported so webhook
// receivers built in-repo can verify deliveries with the same primitive.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
