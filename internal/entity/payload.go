package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ParseTimestamp parses a platform timestamp. Only the UTC "Z" form is
// accepted; sub-second precision is dropped ("2024-03-01T12:00:05.123Z" -> 12:00:05).
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("timestamp %q is not in UTC", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(time.Second), nil
}

// Check validates the envelope fields only; the order is checked by OrderPayload.Check.
func (e *WebhookEvent) Check() error {
	if err := Validate.StructPartial(e, "Event"); err != nil {
		return &MalformedPayloadError{OrderID: e.Body.Order.ID, Field: "event", Err: err}
	}
	return nil
}

// Check validates the payload for the given ingestion path and returns a
// *MalformedPayloadError describing the first problem found.
func (o *OrderPayload) Check(src Source) error {
	if err := Validate.Struct(o); err != nil {
		field := "payload"
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field = verrs[0].Namespace()
		}
		return &MalformedPayloadError{OrderID: o.ID, Field: field, Err: err}
	}

	switch src {
	case SourceWebhook:
		if o.Customer == nil {
			return &MalformedPayloadError{OrderID: o.ID, Field: "customer", Err: errors.New("missing on webhook payload")}
		}
		if o.LocationID == "" {
			return &MalformedPayloadError{OrderID: o.ID, Field: "location_id", Err: errors.New("missing on webhook payload")}
		}
		if _, err := o.LocationID.Int64(); err != nil {
			return &MalformedPayloadError{OrderID: o.ID, Field: "location_id", Err: err}
		}
	case SourceHistoricalImport:
		if o.PrepareFor == nil {
			return &MalformedPayloadError{OrderID: o.ID, Field: "prepare_for", Err: errors.New("missing on historical payload")}
		}
		if o.StartPreparingAt == nil {
			return &MalformedPayloadError{OrderID: o.ID, Field: "start_preparing_at", Err: errors.New("missing on historical payload")}
		}
	default:
		return fmt.Errorf("unknown source %d", src)
	}

	if _, err := o.OrderNumber.Int64(); err != nil {
		return &MalformedPayloadError{OrderID: o.ID, Field: "order_number", Err: err}
	}
	return nil
}

// OrderTimes holds the parsed order timestamps. Optional ones are nil when the payload omits them.
type OrderTimes struct {
	PlacedAt        time.Time
	UpdatedAt       *time.Time
	PrepareForAt    *time.Time
	StartPreppingAt *time.Time
}

// Times parses status_log[0] (placed), status_log[1] (accepted/updated) and the prep timestamps.
func (o *OrderPayload) Times() (OrderTimes, error) {
	var ot OrderTimes
	if len(o.StatusLog) == 0 {
		return ot, &MalformedPayloadError{OrderID: o.ID, Field: "status_log", Err: errors.New("no events")}
	}

	placed, err := ParseTimestamp(o.StatusLog[0].At)
	if err != nil {
		return ot, &MalformedPayloadError{OrderID: o.ID, Field: "status_log[0].at", Err: err}
	}
	ot.PlacedAt = placed

	if len(o.StatusLog) > 1 {
		updated, err := ParseTimestamp(o.StatusLog[1].At)
		if err != nil {
			return ot, &MalformedPayloadError{OrderID: o.ID, Field: "status_log[1].at", Err: err}
		}
		ot.UpdatedAt = &updated
	}

	if ot.PrepareForAt, err = optionalTimestamp(o.PrepareFor); err != nil {
		return ot, &MalformedPayloadError{OrderID: o.ID, Field: "prepare_for", Err: err}
	}
	if ot.StartPreppingAt, err = optionalTimestamp(o.StartPreparingAt); err != nil {
		return ot, &MalformedPayloadError{OrderID: o.ID, Field: "start_preparing_at", Err: err}
	}
	return ot, nil
}

func optionalTimestamp(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := ParseTimestamp(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
