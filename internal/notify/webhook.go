package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/maheshbhatiya73/secrds/internal/events"
)

// WebhookNotifier POSTs a signed JSON payload to a single configured URL.
// Grounded on internal/webhooks/dispatcher.go's deliver(): same header
// names adapted to this domain, same HMAC-SHA256 signing helper.
type WebhookNotifier struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *log.Logger
}

// NewWebhookNotifier builds a notifier posting to url, signed with secret
// if non-empty.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags),
	}
}

func (n *WebhookNotifier) SendAlert(alert events.ThreatAlert) error {
	if n.url == "" {
		return nil
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-Alert-Kind", string(alert.Kind))
	req.Header.Set("X-Agent-Alert-ID", alert.ID)
	if n.secret != "" {
		req.Header.Set("X-Agent-Signature", "sha256="+signPayload(payload, n.secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Printf("webhook delivery failed: %s -> %v", n.url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", n.url, resp.StatusCode)
	}
	return nil
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
