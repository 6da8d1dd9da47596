/*
Package notify pushes appointment events to an external automation hook.

PURPOSE:
  After an appointment is booked the salon wants a WhatsApp/e-mail
  confirmation flow to fire. That flow lives in an external automation
  platform reached over a plain HTTP webhook.

DELIVERY SEMANTICS:
  Fire-and-forget. Booking must never fail or slow down because the
  automation endpoint is down, so delivery happens on a goroutine with
  its own timeout and failures are only logged. There is no retry queue;
  a missed confirmation is an acceptable loss.
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/solera/salon-engine/core"
)

const defaultTimeout = 10 * time.Second

// AppointmentEvent is the payload posted to the webhook.
type AppointmentEvent struct {
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id,omitempty"`
	ClientName    string `json:"client_name,omitempty"`
	ClientPhone   string `json:"client_phone,omitempty"`
	Service       string `json:"service"`
	At            string `json:"at"`
	Status        string `json:"status"`
}

// Notifier posts appointment events to a configured webhook URL.
// A Notifier with an empty URL is valid and does nothing.
type Notifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewNotifier creates a Notifier. url may be empty to disable delivery.
func NewNotifier(url string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// AppointmentBooked delivers the event asynchronously and returns
// immediately. Delivery errors are logged, never returned.
func (n *Notifier) AppointmentBooked(appt core.Appointment, client core.Client) {
	if n.url == "" {
		return
	}

	event := AppointmentEvent{
		AppointmentID: string(appt.ID),
		ClientID:      string(appt.ClientID),
		ClientName:    client.Name,
		ClientPhone:   client.Phone,
		Service:       appt.Service,
		At:            appt.At.String(),
		Status:        string(appt.Status),
	}

	go func() {
		if err := n.post(event); err != nil {
			n.logger.Error("webhook delivery failed",
				"appointment_id", event.AppointmentID,
				"error", err)
		}
	}()
}

func (n *Notifier) post(event AppointmentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
