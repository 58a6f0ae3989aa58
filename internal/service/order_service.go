package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"copas-crm/internal/models"
	"copas-crm/internal/store"
	"copas-crm/internal/util"

	"go.uber.org/zap"
)

// defaultCustomerName stands in when the payload carries no name at
// all; it also fills template variable {{1}}.
const defaultCustomerName = "Cliente"

const defaultCurrency = "COP"

var (
	// ErrOrderNotFound maps to 404 at the HTTP layer.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNoPhoneOnFile maps to 400 on the manual resend path.
	ErrNoPhoneOnFile = errors.New("order has no phone on file")
)

// OrderService orchestrates ingestion, notification and the CRM
// admin operations.
type OrderService struct {
	store    *store.Store
	whatsapp *WhatsAppClient
	logger   *zap.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(st *store.Store, whatsapp *WhatsAppClient) *OrderService {
	return &OrderService{
		store:    st,
		whatsapp: whatsapp,
		logger:   util.GetLogger(),
	}
}

// IngestResult is the webhook response returned to the automation tool.
type IngestResult struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number,omitempty"`
	Message       string `json:"message,omitempty"`
	WhatsAppSent  bool   `json:"whatsapp_sent"`
	WhatsAppError string `json:"whatsapp_error,omitempty"`
}

// IngestOrder handles one inbound Shopify order: upsert customer,
// idempotent upsert order, send the confirmation when the order is new
// and a phone is on file, and record the send outcome. A duplicate
// delivery short-circuits after the order upsert with no send and no
// log row. The order is always saved before the provider is called, so
// a failed message never loses the order.
func (s *OrderService) IngestOrder(ctx context.Context, payload *models.ShopifyOrderPayload) (*IngestResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.IngestOrder")
	defer span.End()

	s.logger.Info("order received",
		zap.String("order_number", payload.OrderNumber),
		zap.String("shopify_order_id", payload.ShopifyOrderID))

	name, email, phone := resolveCustomer(payload)

	customer, err := s.store.UpsertCustomer(ctx, name, email, phone)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("customer_upsert").Inc()
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}

	currency := payload.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	order := &models.Order{
		ShopifyOrderID:    payload.ShopifyOrderID,
		OrderNumber:       payload.OrderNumber,
		CustomerID:        customer.ID,
		CustomerName:      name,
		CustomerEmail:     email,
		CustomerPhone:     phone,
		LineItems:         payload.LineItems,
		TotalPrice:        payload.TotalPrice,
		Currency:          currency,
		FinancialStatus:   payload.FinancialStatus,
		FulfillmentStatus: payload.FulfillmentStatus,
		Status:            models.OrderStatusNew,
		Notes:             payload.Note,
		Tags:              payload.Tags,
		WhatsAppSent:      false,
	}
	if payload.ShippingAddress != nil {
		order.ShippingAddress = *payload.ShippingAddress
	}
	if order.LineItems == nil {
		order.LineItems = []models.LineItem{}
	}

	saved, isNew, err := s.store.UpsertOrder(ctx, order)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("order_upsert").Inc()
		return nil, fmt.Errorf("failed to upsert order: %w", err)
	}

	if !isNew {
		util.OrdersDuplicateTotal.Inc()
		s.logger.Info("duplicate order ignored",
			zap.String("shopify_order_id", payload.ShopifyOrderID),
			zap.String("order_id", saved.ID))
		return &IngestResult{
			Success:     true,
			OrderID:     saved.ID,
			OrderNumber: payload.OrderNumber,
			Message:     "order already exists, no changes applied",
		}, nil
	}

	util.OrdersIngestedTotal.Inc()

	result := SendResult{Error: "no phone on file"}
	if phone != "" {
		result = s.whatsapp.SendOrderConfirmation(ctx, phone, name, payload.OrderNumber, payload.TotalPrice, currency)
	} else {
		s.logger.Warn("order has no phone, whatsapp skipped",
			zap.String("order_number", payload.OrderNumber))
	}

	if err := s.recordSendOutcome(ctx, saved.ID, result); err != nil {
		s.logger.Error("failed to record whatsapp outcome",
			zap.String("order_id", saved.ID), zap.Error(err))
	}

	resp := &IngestResult{
		Success:      true,
		OrderID:      saved.ID,
		OrderNumber:  payload.OrderNumber,
		WhatsAppSent: result.Success,
	}
	if !result.Success {
		resp.WhatsAppError = result.Error
	}
	return resp, nil
}

// ListOrders returns a page of orders with optional filters.
func (s *OrderService) ListOrders(ctx context.Context, status string, whatsappSent *bool, limit, offset int) []models.Order {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	return s.store.GetOrders(ctx, status, whatsappSent, limit, offset)
}

// GetOrder returns an order with its send history, or nil.
func (s *OrderService) GetOrder(ctx context.Context, id string) *models.OrderDetail {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	return s.store.GetOrderByID(ctx, id)
}

// UpdateStatus patches the workflow status of an order. The status
// value is validated at the binding layer before this is called.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string, notes *string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	updated, err := s.store.UpdateOrderStatus(ctx, id, status, notes)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}
	s.logger.Info("order status updated",
		zap.String("order_id", id), zap.String("status", status))
	return updated, nil
}

// ResendWhatsApp repeats the confirmation send for an order,
// regardless of any prior whatsapp_sent state, and always appends a
// log row with the outcome.
func (s *OrderService) ResendWhatsApp(ctx context.Context, orderID string) (SendResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ResendWhatsApp")
	defer span.End()

	detail := s.store.GetOrderByID(ctx, orderID)
	if detail == nil {
		return SendResult{}, ErrOrderNotFound
	}
	if detail.CustomerPhone == "" {
		return SendResult{}, ErrNoPhoneOnFile
	}

	name := detail.CustomerName
	if name == "" {
		name = defaultCustomerName
	}
	currency := detail.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	result := s.whatsapp.SendOrderConfirmation(ctx, detail.CustomerPhone, name, detail.OrderNumber, detail.TotalPrice, currency)
	if err := s.recordSendOutcome(ctx, orderID, result); err != nil {
		s.logger.Error("failed to record whatsapp outcome",
			zap.String("order_id", orderID), zap.Error(err))
	}
	return result, nil
}

// SendCustomMessage sends a free-text reply to the order's customer.
// No log row is written; logs capture confirmation attempts only.
func (s *OrderService) SendCustomMessage(ctx context.Context, orderID, text string) (SendResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SendCustomMessage")
	defer span.End()

	detail := s.store.GetOrderByID(ctx, orderID)
	if detail == nil {
		return SendResult{}, ErrOrderNotFound
	}
	if detail.CustomerPhone == "" {
		return SendResult{}, ErrNoPhoneOnFile
	}
	return s.whatsapp.SendCustomMessage(ctx, detail.CustomerPhone, text), nil
}

// DashboardStats returns the aggregate dashboard counts.
func (s *OrderService) DashboardStats(ctx context.Context) models.DashboardStats {
	ctx, span := util.StartSpan(ctx, "OrderService.DashboardStats")
	defer span.End()

	return s.store.GetDashboardStats(ctx)
}

func (s *OrderService) recordSendOutcome(ctx context.Context, orderID string, result SendResult) error {
	var messageID, errorMessage *string
	if result.MessageID != "" {
		messageID = &result.MessageID
	}
	if result.Error != "" {
		errorMessage = &result.Error
	}
	return s.store.MarkWhatsAppSent(ctx, orderID, result.Success, messageID, errorMessage)
}

// resolveCustomer derives the display name, email and phone from the
// payload. The phone prefers the customer block and falls back to the
// shipping block.
func resolveCustomer(p *models.ShopifyOrderPayload) (name, email, phone string) {
	var first, last string
	if p.Customer != nil {
		first = p.Customer.FirstName
		last = p.Customer.LastName
		email = p.Customer.Email
		phone = p.Customer.Phone
	}
	name = strings.TrimSpace(first + " " + last)
	if name == "" {
		name = defaultCustomerName
	}
	if phone == "" && p.ShippingAddress != nil {
		phone = p.ShippingAddress.Phone
	}
	return name, email, phone
}
