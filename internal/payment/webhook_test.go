package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test"

func testClient(secret string) *Client {
	return &Client{
		webhookSecret: secret,
		logger:        zap.NewNop(),
		tracer:        otel.Tracer("payment_gateway_test"),
		now:           time.Now,
	}
}

func sign(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhook_ValidSignature(t *testing.T) {
	client := testClient(testWebhookSecret)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"client_reference_id":"42"}}}`)

	event, err := client.VerifyWebhook(payload, sign(testWebhookSecret, time.Now().Unix(), payload))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "checkout.session.completed", event.Type)
	assert.Equal(t, "42", event.Data.Object.ClientReferenceID)
}

func TestVerifyWebhook_WrongSecret(t *testing.T) {
	client := testClient(testWebhookSecret)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	_, err := client.VerifyWebhook(payload, sign("whsec_other", time.Now().Unix(), payload))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyWebhook_TamperedPayload(t *testing.T) {
	client := testClient(testWebhookSecret)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := sign(testWebhookSecret, time.Now().Unix(), payload)

	tampered := []byte(`{"id":"evt_1","type":"charge.refunded"}`)
	_, err := client.VerifyWebhook(tampered, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyWebhook_MalformedHeader(t *testing.T) {
	client := testClient(testWebhookSecret)
	payload := []byte(`{}`)

	for _, header := range []string{"", "garbage", "t=123", "v1=abcd", "t=notanumber,v1=abcd"} {
		_, err := client.VerifyWebhook(payload, header)
		assert.ErrorIsf(t, err, ErrInvalidSignature, "header %q", header)
	}
}

func TestVerifyWebhook_StaleTimestamp(t *testing.T) {
	client := testClient(testWebhookSecret)
	payload := []byte(`{}`)

	stale := time.Now().Add(-signatureTolerance - time.Minute).Unix()
	_, err := client.VerifyWebhook(payload, sign(testWebhookSecret, stale, payload))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Timestamps from the future are just as suspicious.
	future := time.Now().Add(signatureTolerance + time.Minute).Unix()
	_, err = client.VerifyWebhook(payload, sign(testWebhookSecret, future, payload))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyWebhook_NoSecretConfigured(t *testing.T) {
	client := testClient("")
	payload := []byte(`{}`)

	// Even a correctly signed delivery is rejected when no secret is set.
	_, err := client.VerifyWebhook(payload, sign(testWebhookSecret, time.Now().Unix(), payload))
	assert.ErrorIs(t, err, ErrNoWebhookSecret)
}

func TestVerifyWebhook_BodyParsedOnlyAfterVerification(t *testing.T) {
	client := testClient(testWebhookSecret)
	payload := []byte(`{not even json`)

	// Unsigned garbage fails on the signature, not on the decoder.
	_, err := client.VerifyWebhook(payload, "t=1,v1=00")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Correctly signed garbage makes it to the decoder and fails there.
	_, err = client.VerifyWebhook(payload, sign(testWebhookSecret, time.Now().Unix(), payload))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}
