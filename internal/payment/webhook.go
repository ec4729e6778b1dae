package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds how stale a webhook timestamp may be before the
// delivery is rejected as a possible replay.
const signatureTolerance = 5 * time.Minute

var (
	ErrNoWebhookSecret  = errors.New("webhook secret is not configured")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)

// Event is the raw provider envelope, decoded only after the signature
// checks out.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object EventObject `json:"object"`
	} `json:"data"`
}

// EventObject is the union of the object shapes the integration cares about:
// checkout sessions, payment intents and charges all decode into it.
type EventObject struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	PaymentIntent     string            `json:"payment_intent"`
	AmountTotal       int64             `json:"amount_total"`
	Amount            int64             `json:"amount"`
	AmountRefunded    int64             `json:"amount_refunded"`
}

// VerifyWebhook checks the HMAC signature before any event parsing. An
// unverifiable webhook is rejected, never trusted: this is the only path by
// which unauthenticated network input can reach order state. The header
// format is "t=<unix>,v1=<hex hmac-sha256 of '<unix>.<payload>'>".
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, ErrNoWebhookSecret
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return nil, ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	age := c.now().Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range signatures {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrInvalidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}

	return &event, nil
}
