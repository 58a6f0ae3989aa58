package models

import "time"

// Customer represents a CRM customer row. Customers are keyed by
// email when one is present; rows without an email are always
// inserted as new.
type Customer struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order represents a CRM order row. Exactly one row exists per
// Shopify order id; customer fields are denormalized onto the order
// so the dashboard can render without joins.
type Order struct {
	ID                string          `json:"id,omitempty"`
	ShopifyOrderID    string          `json:"shopify_order_id"`
	OrderNumber       string          `json:"order_number"`
	CustomerID        string          `json:"customer_id,omitempty"`
	CustomerName      string          `json:"customer_name"`
	CustomerEmail     string          `json:"customer_email,omitempty"`
	CustomerPhone     string          `json:"customer_phone,omitempty"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	LineItems         []LineItem      `json:"line_items"`
	TotalPrice        string          `json:"total_price"`
	Currency          string          `json:"currency"`
	FinancialStatus   string          `json:"financial_status,omitempty"`
	FulfillmentStatus string          `json:"fulfillment_status,omitempty"`
	Status            string          `json:"status"`
	Notes             string          `json:"notes,omitempty"`
	Tags              string          `json:"tags,omitempty"`
	WhatsAppSent      bool            `json:"whatsapp_sent"`
	WhatsAppSentAt    *time.Time      `json:"whatsapp_sent_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// WhatsAppLog is one append-only row per send attempt. Logs are
// never updated or deleted.
type WhatsAppLog struct {
	ID           string    `json:"id,omitempty"`
	OrderID      string    `json:"order_id"`
	Success      bool      `json:"success"`
	MessageID    *string   `json:"message_id"`
	ErrorMessage *string   `json:"error_message"`
	SentAt       time.Time `json:"sent_at"`
}

// OrderDetail is an order plus its send history, newest attempt first.
type OrderDetail struct {
	Order
	WhatsAppLogs []WhatsAppLog `json:"whatsapp_logs"`
}

// ShippingAddress mirrors the Shopify shipping block.
type ShippingAddress struct {
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Zip      string `json:"zip,omitempty"`
	// Phone is the fallback when the customer block carries none.
	Phone string `json:"phone,omitempty"`
}

// LineItem is one line of an order.
type LineItem struct {
	Name         string `json:"name" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	Price        string `json:"price" binding:"required"`
	SKU          string `json:"sku,omitempty"`
	VariantTitle string `json:"variant_title,omitempty"`
}

// CustomerData is the customer block of the inbound webhook payload.
type CustomerData struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// ShopifyOrderPayload is the payload the automation tool (Make) POSTs
// to /webhook/shopify, mapped from the raw Shopify order webhook.
type ShopifyOrderPayload struct {
	ShopifyOrderID    string           `json:"shopify_order_id" binding:"required"`
	OrderNumber       string           `json:"order_number" binding:"required"`
	Customer          *CustomerData    `json:"customer"`
	ShippingAddress   *ShippingAddress `json:"shipping_address"`
	LineItems         []LineItem       `json:"line_items" binding:"required,dive"`
	TotalPrice        string           `json:"total_price" binding:"required"`
	Currency          string           `json:"currency"`
	FinancialStatus   string           `json:"financial_status"`
	FulfillmentStatus string           `json:"fulfillment_status"`
	Note              string           `json:"note"`
	Tags              string           `json:"tags"`
}

// OrderStatusUpdate is the body of PATCH /orders/:id/status.
type OrderStatusUpdate struct {
	Status string  `json:"status" binding:"required,orderstatus"`
	Notes  *string `json:"notes"`
}

// DashboardStats are the aggregate counts for the CRM dashboard.
type DashboardStats struct {
	TotalOrders     int `json:"total_orders"`
	NewOrders       int `json:"new_orders"`
	ShippedOrders   int `json:"shipped_orders"`
	PendingWhatsApp int `json:"pending_whatsapp"`
}

// Workflow statuses. Distinct from Shopify's financial/fulfillment
// status strings, which are stored verbatim.
const (
	OrderStatusNew        = "new"
	OrderStatusInProgress = "in-progress"
	OrderStatusShipped    = "shipped"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// ValidOrderStatuses lists every accepted workflow status.
var ValidOrderStatuses = []string{
	OrderStatusNew,
	OrderStatusInProgress,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// IsValidOrderStatus reports whether s is a member of the workflow
// status enum.
func IsValidOrderStatus(s string) bool {
	for _, v := range ValidOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}
