// сущности, которые ходят между слоями: входящий заказ платформы и строка выгрузки для аналитики

package entity

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New()
}

// Source says which ingestion path produced an order payload.
type Source int

const (
	SourceWebhook Source = iota
	SourceHistoricalImport
)

func (s Source) String() string {
	switch s {
	case SourceWebhook:
		return "webhook"
	case SourceHistoricalImport:
		return "historical_import"
	default:
		return "unknown"
	}
}

// CatalogKey selects the natural key used for items and modifiers.
type CatalogKey string

const (
	// CatalogKeyPlatformID keys on the platform id, falling back to the name when the payload has none.
	CatalogKeyPlatformID CatalogKey = "platform_id"
	CatalogKeyName       CatalogKey = "name"
)

func (k CatalogKey) Valid() bool {
	return k == CatalogKeyPlatformID || k == CatalogKeyName
}

// WebhookEvent is the envelope the delivery platform posts to the webhook endpoint.
type WebhookEvent struct {
	Event string `json:"event" validate:"required"`
	Body  struct {
		Order OrderPayload `json:"order"`
	} `json:"body"`
}

const (
	StatusRejected = "rejected"
	StatusCanceled = "canceled"
)

type OrderPayload struct {
	ID          string        `json:"id" validate:"required"`
	OrderNumber json.Number   `json:"order_number" validate:"required"`
	Status      string        `json:"status" validate:"required"`
	StatusLog   []StatusEvent `json:"status_log" validate:"required,min=1,dive"`
	Items       []ItemPayload `json:"items" validate:"required,dive"`

	// webhook-only
	Customer   *CustomerPayload `json:"customer,omitempty"`
	LocationID json.Number      `json:"location_id,omitempty"`
	Restaurant *struct {
		Name string `json:"name"`
	} `json:"restaurant,omitempty"`

	// historical-import only; webhook payloads may omit them
	PrepareFor       *string `json:"prepare_for,omitempty"`
	StartPreparingAt *string `json:"start_preparing_at,omitempty"`
}

type StatusEvent struct {
	Status string `json:"status"`
	At     string `json:"at" validate:"required"`
}

type CustomerPayload struct {
	FirstName         string `json:"first_name"`
	ContactNumber     string `json:"contact_number" validate:"required"`
	ContactAccessCode string `json:"contact_access_code"`
}

type Price struct {
	Fractional *int64 `json:"fractional" validate:"required"`
	Currency   string `json:"currency_code,omitempty"`
}

type ItemPayload struct {
	PosItemID       *string           `json:"pos_item_id"`
	Name            string            `json:"name" validate:"required"`
	OperationalName string            `json:"operational_name"`
	Quantity        *int              `json:"quantity" validate:"required"`
	TotalPrice      Price             `json:"total_price"`
	Modifiers       []ModifierPayload `json:"modifiers" validate:"dive"`
}

type ModifierPayload struct {
	ID              string  `json:"id,omitempty"`
	PosItemID       *string `json:"pos_item_id"`
	Name            string  `json:"name" validate:"required"`
	OperationalName string  `json:"operational_name"`
	Quantity        *int    `json:"quantity" validate:"required"`
	TotalPrice      Price   `json:"total_price"`
}

// PlatformID возвращает внешний id позиции или пустую строку
func (i ItemPayload) PlatformID() string {
	if i.PosItemID == nil {
		return ""
	}
	return *i.PosItemID
}

func (m ModifierPayload) PlatformID() string {
	if m.PosItemID != nil && *m.PosItemID != "" {
		return *m.PosItemID
	}
	return m.ID
}

// PartnerName is the restaurant name carried by webhook payloads, used only for logging on that path.
func (o OrderPayload) PartnerName() string {
	if o.Restaurant == nil {
		return ""
	}
	return o.Restaurant.Name
}

// OrderRow is one (order, item, modifier) row of the denormalized bulk-load view.
// Item and modifier columns are nil when the outer join found nothing.
type OrderRow struct {
	OrderID                 int64      `json:"order_id" db:"order_id"`
	PlatformOrderID         string     `json:"platform_order_id" db:"platform_order_id"`
	PlatformOrderNumber     int64      `json:"platform_order_number" db:"platform_order_number"`
	OrderStatus             string     `json:"order_status" db:"order_status"`
	OrderPlacedAt           time.Time  `json:"order_placed_timestamp" db:"order_placed_timestamp"`
	OrderUpdatedAt          *time.Time `json:"order_updated_timestamp" db:"order_updated_timestamp"`
	OrderPrepareForAt       *time.Time `json:"order_prepare_for_timestamp" db:"order_prepare_for_timestamp"`
	OrderStartPreppingAt    *time.Time `json:"order_start_prepping_at_timestamp" db:"order_start_prepping_at_timestamp"`
	CustomerID              *int64     `json:"customer_id" db:"customer_id"`
	FirstName               *string    `json:"first_name" db:"first_name"`
	ContactNumber           *string    `json:"contact_number" db:"contact_number"`
	ContactAccessCode       *string    `json:"contact_access_code" db:"contact_access_code"`
	PartnerID               int64      `json:"partner_id" db:"partner_id"`
	PartnerName             string     `json:"partner_name" db:"partner_name"`
	ItemID                  *int64     `json:"item_id" db:"item_id"`
	PlatformItemID          *string    `json:"platform_item_id" db:"platform_item_id"`
	ItemName                *string    `json:"item_name" db:"item_name"`
	ItemOperationalName     *string    `json:"item_operational_name" db:"item_operational_name"`
	ItemFractionalCost      *int64     `json:"item_fractional_cost" db:"item_fractional_cost"`
	ItemQuantity            *int64     `json:"item_quantity" db:"item_quantity"`
	ItemFractionalPrice     *int64     `json:"item_fractional_price" db:"item_fractional_price"`
	ModifierID              *int64     `json:"modifier_id" db:"modifier_id"`
	PlatformModifierID      *string    `json:"platform_modifier_id" db:"platform_modifier_id"`
	ModifierName            *string    `json:"modifier_name" db:"modifier_name"`
	ModifierOperationalName *string    `json:"modifier_operational_name" db:"modifier_operational_name"`
	ModifierQuantity        *int64     `json:"modifier_quantity" db:"modifier_quantity"`
	ModifierFractionalPrice *int64     `json:"modifier_fractional_price" db:"modifier_fractional_price"`
}
