package service

import (
	"context"
	"fmt"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/Sree5835/dynamic-pricing/internal/storage"
)

// Normalizer turns one order payload into rows of the seven order tables.
type Normalizer struct {
	store      OrderStore
	partners   PartnerResolver
	catalogKey entity.CatalogKey
}

func NewNormalizer(store OrderStore, partners PartnerResolver, key entity.CatalogKey) *Normalizer {
	if !key.Valid() {
		key = entity.CatalogKeyPlatformID
	}
	return &Normalizer{store: store, partners: partners, catalogKey: key}
}

// IngestOrder writes the order graph through q in dependency order:
// customer, order, then item -> order item -> modifier -> order item modifier
// for each line. q is the caller's transaction; nothing here commits.
func (n *Normalizer) IngestOrder(ctx context.Context, q storage.Querier, partnerName string, o *entity.OrderPayload, src entity.Source) (int64, error) {
	if err := o.Check(src); err != nil {
		return 0, err
	}
	times, err := o.Times()
	if err != nil {
		return 0, err
	}
	number, _ := o.OrderNumber.Int64() // проверено в Check

	order := storage.Row{
		"platform_order_id":      o.ID,
		"platform_order_number":  number,
		"order_status":           o.Status,
		"order_placed_timestamp": times.PlacedAt,
	}
	// отсутствующие в payload поля не пишем, чтобы повтор не затёр сохранённое
	if times.UpdatedAt != nil {
		order["order_updated_timestamp"] = *times.UpdatedAt
	}
	if times.PrepareForAt != nil {
		order["order_prepare_for_timestamp"] = *times.PrepareForAt
	}
	if times.StartPreppingAt != nil {
		order["order_start_prepping_at_timestamp"] = *times.StartPreppingAt
	}

	switch src {
	case entity.SourceWebhook:
		customerID, err := n.store.UpsertReturning(ctx, q, storage.TableCustomers, storage.Row{
			"first_name":          o.Customer.FirstName,
			"contact_number":      o.Customer.ContactNumber,
			"contact_access_code": o.Customer.ContactAccessCode,
		}, []string{"contact_number"}, "customer_id")
		if err != nil {
			return 0, err
		}
		partnerID, _ := o.LocationID.Int64()
		order["customer_id"] = customerID
		order["partner_id"] = partnerID
	case entity.SourceHistoricalImport:
		partnerID, err := n.partners.ResolvePartner(ctx, q, partnerName)
		if err != nil {
			return 0, err
		}
		order["partner_id"] = partnerID
	}

	orderID, err := n.store.UpsertReturning(ctx, q, storage.TableOrders, order, []string{"platform_order_id"}, "order_id")
	if err != nil {
		return 0, err
	}

	for i := range o.Items {
		if err := n.ingestItem(ctx, q, orderID, &o.Items[i]); err != nil {
			return 0, fmt.Errorf("order %s item %d: %w", o.ID, i, err)
		}
	}
	return orderID, nil
}

func (n *Normalizer) ingestItem(ctx context.Context, q storage.Querier, orderID int64, it *entity.ItemPayload) error {
	row := storage.Row{
		"item_name":             it.Name,
		"item_operational_name": it.OperationalName,
	}
	pid := it.PlatformID()
	if pid != "" {
		row["platform_item_id"] = pid
	}
	itemID, err := n.store.UpsertReturning(ctx, q, storage.TableItems, row, []string{n.catalogColumn("item_name", "platform_item_id", pid)}, "item_id")
	if err != nil {
		return err
	}

	if err := n.store.Upsert(ctx, q, storage.TableOrderItems, storage.Row{
		"order_id":         orderID,
		"item_id":          itemID,
		"quantity":         *it.Quantity,
		"fractional_price": *it.TotalPrice.Fractional,
	}, []string{"order_id", "item_id"}); err != nil {
		return err
	}

	for j := range it.Modifiers {
		m := &it.Modifiers[j]
		mrow := storage.Row{
			"modifier_name":             m.Name,
			"modifier_operational_name": m.OperationalName,
		}
		mpid := m.PlatformID()
		if mpid != "" {
			mrow["platform_modifier_id"] = mpid
		}
		modifierID, err := n.store.UpsertReturning(ctx, q, storage.TableModifiers, mrow,
			[]string{n.catalogColumn("modifier_name", "platform_modifier_id", mpid)}, "modifier_id")
		if err != nil {
			return fmt.Errorf("modifier %d: %w", j, err)
		}

		if err := n.store.Upsert(ctx, q, storage.TableOrderItemModifiers, storage.Row{
			"order_id":         orderID,
			"item_id":          itemID,
			"modifier_id":      modifierID,
			"quantity":         *m.Quantity,
			"fractional_price": *m.TotalPrice.Fractional,
		}, []string{"order_id", "item_id", "modifier_id"}); err != nil {
			return fmt.Errorf("modifier %d: %w", j, err)
		}
	}
	return nil
}

// catalogColumn picks the natural key of an item or modifier. Platform ids win
// when configured and present; otherwise the name is the key.
func (n *Normalizer) catalogColumn(nameCol, platformCol, platformID string) string {
	if n.catalogKey == entity.CatalogKeyPlatformID && platformID != "" {
		return platformCol
	}
	return nameCol
}
