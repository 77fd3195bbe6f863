package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// WebhookPayload is the embed-style body POSTed to the configured endpoint.
type WebhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Webhook delivers payloads to an externally configured HTTP endpoint. An
// empty URL means the channel is disabled, which is not an error. Delivery
// failures are logged and dropped; nothing upstream ever sees them.
type Webhook struct {
	url    func() string
	client *http.Client
}

// NewWebhook builds a webhook client. url is read per delivery so a runtime
// config change takes effect without a restart.
func NewWebhook(url func() string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver posts the payload, best effort.
func (w *Webhook) Deliver(payload WebhookPayload) {
	endpoint := w.url()
	if endpoint == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("webhook: failed to marshal payload: %v", err)
		return
	}

	resp, err := w.client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook: delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("webhook: endpoint answered %s", resp.Status)
	}
}
