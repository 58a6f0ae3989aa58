package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"copas-crm/config"
	"copas-crm/internal/util"

	"go.uber.org/zap"
)

// defaultCountryCode is prepended to bare 10-digit mobile numbers
// starting with "3" (Colombian mobile pattern).
const defaultCountryCode = "57"

const providerTimeout = 30 * time.Second

// NormalizePhone converts a freeform phone string into the digit-only
// international format WhatsApp requires. It never fails; malformed
// input yields a short digit string that callers must length-check.
//
//	"+57 300-123-4567" → "573001234567"
//	"3001234567"       → "573001234567"
//	"+1-555-123-4567"  → "15551234567"
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	digits := b.String()
	if len(digits) == 10 && strings.HasPrefix(digits, "3") {
		digits = defaultCountryCode + digits
	}
	return digits
}

// SendResult is the uniform outcome of one provider call.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WhatsAppClient wraps the Meta Cloud API for WhatsApp Business.
// Template messages must be approved in Meta Business Manager under
// the configured template name.
type WhatsAppClient struct {
	cfg    config.WhatsAppConfig
	http   *http.Client
	logger *zap.Logger
}

// NewWhatsAppClient creates a client for the configured phone-number
// identity.
func NewWhatsAppClient(cfg config.WhatsAppConfig) *WhatsAppClient {
	return &WhatsAppClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: providerTimeout},
		logger: util.GetLogger(),
	}
}

type messageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         *messageTemplate `json:"template,omitempty"`
	Text             *messageText     `json:"text,omitempty"`
}

type messageTemplate struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messageText struct {
	Body string `json:"body"`
}

// SendOrderConfirmation sends the approved order-confirmation template
// with three positional variables: customer name, order number and
// "<currency> <total>". Exactly one provider call is made per
// invocation, none when a guard fails, and failures are never retried.
func (c *WhatsAppClient) SendOrderConfirmation(ctx context.Context, phone, customerName, orderNumber, total, currency string) SendResult {
	ctx, span := util.StartSpan(ctx, "WhatsAppClient.SendOrderConfirmation")
	defer span.End()

	if !c.configured() {
		return SendResult{Error: "whatsapp not configured: missing WHATSAPP_PHONE_NUMBER_ID or WHATSAPP_ACCESS_TOKEN"}
	}

	to := NormalizePhone(phone)
	if len(to) < 10 {
		util.WhatsAppFailedTotal.WithLabelValues("invalid_phone").Inc()
		return SendResult{Error: fmt.Sprintf("invalid phone number: %q", phone)}
	}

	msg := messageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &messageTemplate{
			Name:     c.cfg.TemplateName,
			Language: templateLanguage{Code: c.cfg.TemplateLanguage},
			Components: []templateComponent{{
				Type: "body",
				Parameters: []templateParameter{
					{Type: "text", Text: customerName},
					{Type: "text", Text: orderNumber},
					{Type: "text", Text: currency + " " + total},
				},
			}},
		},
	}
	return c.send(ctx, msg)
}

// SendCustomMessage sends a free-text message. The provider only
// delivers these inside the 24h window after the customer last wrote
// in; that window is not enforced here.
func (c *WhatsAppClient) SendCustomMessage(ctx context.Context, phone, text string) SendResult {
	ctx, span := util.StartSpan(ctx, "WhatsAppClient.SendCustomMessage")
	defer span.End()

	if !c.configured() {
		return SendResult{Error: "whatsapp not configured: missing WHATSAPP_PHONE_NUMBER_ID or WHATSAPP_ACCESS_TOKEN"}
	}

	msg := messageRequest{
		MessagingProduct: "whatsapp",
		To:               NormalizePhone(phone),
		Type:             "text",
		Text:             &messageText{Body: text},
	}
	return c.send(ctx, msg)
}

func (c *WhatsAppClient) configured() bool {
	return c.cfg.PhoneNumberID != "" && c.cfg.AccessToken != ""
}

func (c *WhatsAppClient) send(ctx context.Context, msg messageRequest) SendResult {
	payload, err := json.Marshal(msg)
	if err != nil {
		return SendResult{Error: err.Error()}
	}

	endpoint := fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.cfg.APIBaseURL, "/"), c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return SendResult{Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	util.WhatsAppSendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.WhatsAppFailedTotal.WithLabelValues("transport").Inc()
		c.logger.Warn("whatsapp request failed", zap.String("to", msg.To), zap.Error(err))
		return SendResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		util.WhatsAppFailedTotal.WithLabelValues("transport").Inc()
		return SendResult{Error: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.WhatsAppFailedTotal.WithLabelValues("provider").Inc()
		detail := providerErrorDetail(raw)
		c.logger.Warn("whatsapp send rejected",
			zap.String("to", msg.To),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail))
		return SendResult{Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, detail)}
	}

	var body struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	var messageID string
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Messages) > 0 {
		messageID = body.Messages[0].ID
	}

	util.WhatsAppSentTotal.Inc()
	c.logger.Info("whatsapp message sent",
		zap.String("to", msg.To),
		zap.String("message_id", messageID))
	return SendResult{Success: true, MessageID: messageID}
}

// providerErrorDetail extracts Meta's embedded error message when the
// body is parseable, falling back to the raw body text.
func providerErrorDetail(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
