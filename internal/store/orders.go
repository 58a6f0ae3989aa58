package store

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"copas-crm/internal/models"
	"copas-crm/internal/util"

	"go.uber.org/zap"
)

// UpsertCustomer inserts or patches a customer keyed by email. When an
// email is present and a row already exists, name/phone and the
// updated timestamp are patched; without an email a new row is always
// inserted.
func (s *Store) UpsertCustomer(ctx context.Context, name, email, phone string) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "Store.UpsertCustomer")
	defer span.End()

	now := time.Now().UTC()

	if email != "" {
		var existing []models.Customer
		query := "email=eq." + url.QueryEscape(email) + "&select=*"
		if err := s.getRows(ctx, "customers", query, &existing); err != nil {
			return nil, fmt.Errorf("failed to look up customer: %w", err)
		}
		if len(existing) > 0 {
			patch := map[string]any{"updated_at": now}
			if name != "" {
				patch["name"] = name
			}
			if phone != "" {
				patch["phone"] = phone
			}
			var updated []models.Customer
			if err := s.writeRows(ctx, http.MethodPatch, "customers", "email=eq."+url.QueryEscape(email), patch, &updated); err != nil {
				return nil, fmt.Errorf("failed to update customer: %w", err)
			}
			if len(updated) > 0 {
				return &updated[0], nil
			}
			merged := existing[0]
			if name != "" {
				merged.Name = name
			}
			if phone != "" {
				merged.Phone = phone
			}
			merged.UpdatedAt = now
			return &merged, nil
		}
	}

	customer := models.Customer{
		Name:      name,
		Email:     email,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var inserted []models.Customer
	if err := s.writeRows(ctx, http.MethodPost, "customers", "", customer, &inserted); err != nil {
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}
	if len(inserted) == 0 {
		return &customer, nil
	}
	return &inserted[0], nil
}

// UpsertOrder inserts an order keyed by its Shopify order id. The
// store's unique constraint on shopify_order_id is the idempotency
// authority: the insert runs with resolution=ignore-duplicates, and an
// empty representation means the row already existed. Duplicate
// deliveries return the stored row untouched, even when the supplied
// fields differ. Returns (row, isNew).
func (s *Store) UpsertOrder(ctx context.Context, order *models.Order) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "Store.UpsertOrder")
	defer span.End()

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	var inserted []models.Order
	err := s.do(ctx, http.MethodPost, "orders", "on_conflict=shopify_order_id", order,
		"resolution=ignore-duplicates,return=representation", &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert order: %w", err)
	}
	if len(inserted) > 0 {
		return &inserted[0], true, nil
	}

	var existing []models.Order
	query := "shopify_order_id=eq." + url.QueryEscape(order.ShopifyOrderID) + "&select=*"
	if err := s.getRows(ctx, "orders", query, &existing); err != nil {
		return nil, false, fmt.Errorf("failed to fetch existing order: %w", err)
	}
	if len(existing) == 0 {
		return nil, false, fmt.Errorf("order %s conflicted on insert but was not found", order.ShopifyOrderID)
	}
	return &existing[0], false, nil
}

// GetOrders lists orders newest first with optional equality filters.
// Read failures degrade to an empty list.
func (s *Store) GetOrders(ctx context.Context, status string, whatsappSent *bool, limit, offset int) []models.Order {
	ctx, span := util.StartSpan(ctx, "Store.GetOrders")
	defer span.End()

	query := fmt.Sprintf("select=*&limit=%d&offset=%d&order=created_at.desc", limit, offset)
	if status != "" {
		query += "&status=eq." + url.QueryEscape(status)
	}
	if whatsappSent != nil {
		query += fmt.Sprintf("&whatsapp_sent=eq.%t", *whatsappSent)
	}

	var orders []models.Order
	if err := s.getRows(ctx, "orders", query, &orders); err != nil {
		s.logger.Warn("order list query failed", zap.Error(err))
		return []models.Order{}
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders
}

// GetOrderByID returns an order with its send history (newest attempt
// first), or nil when unknown or unreachable.
func (s *Store) GetOrderByID(ctx context.Context, id string) *models.OrderDetail {
	ctx, span := util.StartSpan(ctx, "Store.GetOrderByID")
	defer span.End()

	var rows []models.Order
	if err := s.getRows(ctx, "orders", "id=eq."+url.QueryEscape(id)+"&select=*", &rows); err != nil {
		s.logger.Warn("order lookup failed", zap.String("order_id", id), zap.Error(err))
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	detail := &models.OrderDetail{Order: rows[0], WhatsAppLogs: []models.WhatsAppLog{}}

	var logs []models.WhatsAppLog
	logQuery := "order_id=eq." + url.QueryEscape(id) + "&select=*&order=sent_at.desc"
	if err := s.getRows(ctx, "whatsapp_logs", logQuery, &logs); err != nil {
		s.logger.Warn("whatsapp log lookup failed", zap.String("order_id", id), zap.Error(err))
	} else if logs != nil {
		detail.WhatsAppLogs = logs
	}
	return detail
}

// UpdateOrderStatus patches the workflow status (and notes when
// given). Returns nil when the order id is unknown.
func (s *Store) UpdateOrderStatus(ctx context.Context, id, status string, notes *string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Store.UpdateOrderStatus")
	defer span.End()

	patch := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if notes != nil {
		patch["notes"] = *notes
	}

	var updated []models.Order
	if err := s.writeRows(ctx, http.MethodPatch, "orders", "id=eq."+url.QueryEscape(id), patch, &updated); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if len(updated) == 0 {
		return nil, nil
	}
	return &updated[0], nil
}

// MarkWhatsAppSent records a send attempt: it patches the order's
// whatsapp_sent flag (and sent timestamp on success) and appends one
// immutable log row. Both writes happen regardless of the outcome.
func (s *Store) MarkWhatsAppSent(ctx context.Context, orderID string, success bool, messageID, errorMessage *string) error {
	ctx, span := util.StartSpan(ctx, "Store.MarkWhatsAppSent")
	defer span.End()

	now := time.Now().UTC()

	patch := map[string]any{
		"whatsapp_sent": success,
		"updated_at":    now,
	}
	if success {
		patch["whatsapp_sent_at"] = now
	}
	patchErr := s.writeRows(ctx, http.MethodPatch, "orders", "id=eq."+url.QueryEscape(orderID), patch, nil)

	logRow := models.WhatsAppLog{
		OrderID:      orderID,
		Success:      success,
		MessageID:    messageID,
		ErrorMessage: errorMessage,
		SentAt:       now,
	}
	insertErr := s.writeRows(ctx, http.MethodPost, "whatsapp_logs", "", logRow, nil)

	if patchErr != nil {
		return fmt.Errorf("failed to flag order: %w", patchErr)
	}
	if insertErr != nil {
		return fmt.Errorf("failed to append whatsapp log: %w", insertErr)
	}
	return nil
}

// GetDashboardStats returns the four dashboard counts. Each count is
// an independent query and degrades to zero on failure.
func (s *Store) GetDashboardStats(ctx context.Context) models.DashboardStats {
	ctx, span := util.StartSpan(ctx, "Store.GetDashboardStats")
	defer span.End()

	return models.DashboardStats{
		TotalOrders:     s.countRows(ctx, "orders", "select=id"),
		NewOrders:       s.countRows(ctx, "orders", "status=eq."+models.OrderStatusNew+"&select=id"),
		ShippedOrders:   s.countRows(ctx, "orders", "status=eq."+models.OrderStatusShipped+"&select=id"),
		PendingWhatsApp: s.countRows(ctx, "orders", "whatsapp_sent=eq.false&select=id"),
	}
}
