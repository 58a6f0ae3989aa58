package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"copas-crm/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+57 300-123-4567", "573001234567"},
		{"3001234567", "573001234567"},
		{"+1-555-123-4567", "15551234567"},
		{"(300) 123 4567", "573001234567"},
		{"+573001234567", "573001234567"},
		{"4001234567", "4001234567"}, // 10 digits but not mobile pattern
		{"12345", "12345"},
		{"", ""},
		{"no digits here", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "input %q", tt.in)
	}
}

func whatsappTestConfig(baseURL string) config.WhatsAppConfig {
	return config.WhatsAppConfig{
		APIBaseURL:       baseURL,
		PhoneNumberID:    "1234567890",
		AccessToken:      "test-token",
		TemplateName:     "order_confirmation",
		TemplateLanguage: "es",
	}
}

func TestSendOrderConfirmationSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody messageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messaging_product": "whatsapp",
			"messages":          []map[string]string{{"id": "wamid.test123"}},
		})
	}))
	defer srv.Close()

	client := NewWhatsAppClient(whatsappTestConfig(srv.URL))
	result := client.SendOrderConfirmation(context.Background(), "+57 300-123-4567", "Maria Lopez", "#1001", "50000", "COP")

	assert.True(t, result.Success)
	assert.Equal(t, "wamid.test123", result.MessageID)
	assert.Empty(t, result.Error)

	assert.Equal(t, "/1234567890/messages", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "whatsapp", gotBody.MessagingProduct)
	assert.Equal(t, "573001234567", gotBody.To)
	assert.Equal(t, "template", gotBody.Type)
	require.NotNil(t, gotBody.Template)
	assert.Equal(t, "order_confirmation", gotBody.Template.Name)
	assert.Equal(t, "es", gotBody.Template.Language.Code)
	require.Len(t, gotBody.Template.Components, 1)
	params := gotBody.Template.Components[0].Parameters
	require.Len(t, params, 3)
	assert.Equal(t, "Maria Lopez", params[0].Text)
	assert.Equal(t, "#1001", params[1].Text)
	assert.Equal(t, "COP 50000", params[2].Text)
}

func TestSendOrderConfirmationNotConfigured(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	cfg := whatsappTestConfig(srv.URL)
	cfg.AccessToken = ""
	client := NewWhatsAppClient(cfg)

	result := client.SendOrderConfirmation(context.Background(), "3001234567", "Maria", "#1001", "50000", "COP")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not configured")
	assert.Equal(t, 0, calls)
}

func TestSendOrderConfirmationInvalidPhone(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := NewWhatsAppClient(whatsappTestConfig(srv.URL))
	result := client.SendOrderConfirmation(context.Background(), "555-123", "Maria", "#1001", "50000", "COP")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid phone number")
	assert.Equal(t, 0, calls)
}

func TestSendOrderConfirmationProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "template not found"},
		})
	}))
	defer srv.Close()

	client := NewWhatsAppClient(whatsappTestConfig(srv.URL))
	result := client.SendOrderConfirmation(context.Background(), "3001234567", "Maria", "#1001", "50000", "COP")

	assert.False(t, result.Success)
	assert.Equal(t, "HTTP 400: template not found", result.Error)
}

func TestSendOrderConfirmationUnparseableProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewWhatsAppClient(whatsappTestConfig(srv.URL))
	result := client.SendOrderConfirmation(context.Background(), "3001234567", "Maria", "#1001", "50000", "COP")

	assert.False(t, result.Success)
	assert.Equal(t, "HTTP 500: upstream exploded", result.Error)
}

func TestSendCustomMessage(t *testing.T) {
	var gotBody messageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.reply1"}},
		})
	}))
	defer srv.Close()

	client := NewWhatsAppClient(whatsappTestConfig(srv.URL))
	result := client.SendCustomMessage(context.Background(), "3001234567", "Tu pedido sale hoy")

	assert.True(t, result.Success)
	assert.Equal(t, "text", gotBody.Type)
	assert.Nil(t, gotBody.Template)
	require.NotNil(t, gotBody.Text)
	assert.Equal(t, "Tu pedido sale hoy", gotBody.Text.Body)
	assert.Equal(t, "573001234567", gotBody.To)
}
