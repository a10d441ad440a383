package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/Sree5835/dynamic-pricing/internal/storage"
)

// fakeStore keeps every table as natural key -> row and snapshots them per transaction.
type fakeStore struct {
	mu        sync.Mutex
	tables    map[string]map[string]storage.Row
	seq       int64
	partners  map[string]int64
	cursors   map[string]int64
	failTable string
	resolves  int
	// resolvesOutsideTx counts partner lookups not made with the transaction querier
	resolvesOutsideTx int
}

// fakeTx stands in for the transaction querier handed to InTx callbacks.
type fakeTx struct{ storage.Querier }

func newFakeStore(partners map[string]int64) *fakeStore {
	return &fakeStore{
		tables:   make(map[string]map[string]storage.Row),
		partners: partners,
		cursors:  make(map[string]int64),
	}
}

func (f *fakeStore) snapshot() (map[string]map[string]storage.Row, map[string]int64) {
	tables := make(map[string]map[string]storage.Row, len(f.tables))
	for t, rows := range f.tables {
		cp := make(map[string]storage.Row, len(rows))
		for k, r := range rows {
			cp[k] = maps.Clone(r)
		}
		tables[t] = cp
	}
	return tables, maps.Clone(f.cursors)
}

func (f *fakeStore) InTx(ctx context.Context, fn func(q storage.Querier) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tables, cursors := f.snapshot()
	if err := fn(&fakeTx{}); err != nil {
		f.tables, f.cursors = tables, cursors // откат
		return err
	}
	return nil
}

func (f *fakeStore) upsert(table string, row storage.Row, keys []string, returning string) (int64, error) {
	if table == f.failTable {
		return 0, &entity.StorageError{Op: "merge", Table: table, Err: errors.New("injected failure")}
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		v, ok := row[k]
		if !ok {
			return 0, &entity.StorageError{Op: "plan", Table: table, Err: fmt.Errorf("key %q missing", k)}
		}
		parts[i] = fmt.Sprintf("%s=%v", k, v)
	}
	key := strings.Join(parts, ",")

	rows := f.tables[table]
	if rows == nil {
		rows = make(map[string]storage.Row)
		f.tables[table] = rows
	}
	existing, ok := rows[key]
	if !ok {
		existing = storage.Row{}
		if returning != "" {
			f.seq++
			existing[returning] = f.seq
		}
		rows[key] = existing
	}
	for c, v := range row {
		existing[c] = v
	}
	if returning == "" {
		return 0, nil
	}
	return existing[returning].(int64), nil
}

func (f *fakeStore) Upsert(ctx context.Context, q storage.Querier, table string, row storage.Row, keys []string) error {
	_, err := f.upsert(table, row, keys, "")
	return err
}

func (f *fakeStore) UpsertReturning(ctx context.Context, q storage.Querier, table string, row storage.Row, keys []string, returning string) (int64, error) {
	return f.upsert(table, row, keys, returning)
}

func (f *fakeStore) ResolvePartner(ctx context.Context, q storage.Querier, name string) (int64, error) {
	f.resolves++
	if _, ok := q.(*fakeTx); !ok {
		f.resolvesOutsideTx++
	}
	id, ok := f.partners[name]
	if !ok {
		return 0, &entity.UnknownPartnerError{Name: name}
	}
	return id, nil
}

func (f *fakeStore) GetCursor(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[name], nil
}

func (f *fakeStore) SaveCursor(ctx context.Context, name string, pos int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[name] = pos
	return nil
}

// SaveCursorTx runs inside InTx, which already holds the lock.
func (f *fakeStore) SaveCursorTx(ctx context.Context, q storage.Querier, name string, pos int64) error {
	f.cursors[name] = pos
	return nil
}

func (f *fakeStore) count(table string) int {
	return len(f.tables[table])
}

func (f *fakeStore) only(t *testing.T, table string) storage.Row {
	t.Helper()
	if n := f.count(table); n != 1 {
		t.Fatalf("expected 1 row in %s, got %d", table, n)
	}
	for _, r := range f.tables[table] {
		return r
	}
	return nil
}

const webhookEventJSON = `{
	"event": "order.new",
	"body": {"order": {
		"id": "gb:6606c495-e33a-4bde-b152-e3ddd4efe0ee",
		"order_number": 1044,
		"status": "accepted",
		"location_id": "1",
		"restaurant": {"name": "Bifteki"},
		"customer": {"first_name": "Ann", "contact_number": "+442080000000", "contact_access_code": "123456789"},
		"status_log": [
			{"status": "pending", "at": "2024-03-01T12:00:00Z"},
			{"status": "accepted", "at": "2024-03-01T12:00:45.532Z"}
		],
		"items": [{
			"pos_item_id": "wrap-1",
			"name": "Cheese Filled Bifteki Wrap",
			"operational_name": "Cheese Filled Bifteki Wrap (Handmade Greek Pitta Wraps)",
			"quantity": 1,
			"total_price": {"fractional": 1095},
			"modifiers": [
				{"pos_item_id": "mod-1", "name": "Mustard", "operational_name": "Mustard", "quantity": 1, "total_price": {"fractional": 50}}
			]
		}]
	}}
}`

func historicalRaw(id string, prepareFor string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"id": %q,
		"order_number": 7,
		"status": "delivered",
		"status_log": [
			{"status": "pending", "at": "2024-03-02T18:00:00Z"},
			{"status": "accepted", "at": "2024-03-02T18:01:10.1Z"}
		],
		"items": [
			{"pos_item_id": "wrap-1", "name": "Wrap", "operational_name": "Wrap", "quantity": 2, "total_price": {"fractional": 2190}, "modifiers": []},
			{"pos_item_id": "fries-1", "name": "Fries", "operational_name": "Fries", "quantity": 1, "total_price": {"fractional": 350}, "modifiers": []}
		],
		"prepare_for": %q,
		"start_preparing_at": "2024-03-02T18:05:00Z"
	}`, id, prepareFor))
}

func historicalOrder(id string, prepareFor string) entity.OrderPayload {
	var o entity.OrderPayload
	if err := json.Unmarshal(historicalRaw(id, prepareFor), &o); err != nil {
		panic(err)
	}
	return o
}

func sameTime(v any, want time.Time) bool {
	got, ok := v.(time.Time)
	return ok && got.Equal(want)
}

func newTestIngester(store *fakeStore, key entity.CatalogKey) *Ingester {
	return NewIngester(store, NewNormalizer(store, NewPartnerCache(store, 8), key), time.Second)
}

func decodeEvent(t *testing.T) *entity.WebhookEvent {
	t.Helper()
	var ev entity.WebhookEvent
	if err := json.Unmarshal([]byte(webhookEventJSON), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &ev
}

func TestIngestWebhookWithModifierIsIdempotent(t *testing.T) {
	store := newFakeStore(nil)
	g := newTestIngester(store, entity.CatalogKeyPlatformID)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 2; i++ {
		outcome, id, err := g.HandleWebhookEvent(ctx, decodeEvent(t))
		if err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
		if outcome != OutcomeIngested {
			t.Fatalf("delivery %d: expected ingested outcome", i)
		}
		ids = append(ids, id)
	}
	if ids[0] != ids[1] {
		t.Errorf("replay returned a different order id: %d vs %d", ids[0], ids[1])
	}

	for _, table := range []string{
		storage.TableCustomers, storage.TableOrders, storage.TableItems, storage.TableModifiers,
		storage.TableOrderItems, storage.TableOrderItemModifiers,
	} {
		if n := store.count(table); n != 1 {
			t.Errorf("expected 1 row in %s, got %d", table, n)
		}
	}

	oi := store.only(t, storage.TableOrderItems)
	if oi["quantity"] != 1 || oi["fractional_price"] != int64(1095) {
		t.Errorf("unexpected order item %v", oi)
	}
	oim := store.only(t, storage.TableOrderItemModifiers)
	if oim["quantity"] != 1 || oim["fractional_price"] != int64(50) {
		t.Errorf("unexpected order item modifier %v", oim)
	}

	order := store.only(t, storage.TableOrders)
	if order["partner_id"] != int64(1) || order["customer_id"] == nil {
		t.Errorf("webhook order must carry location and customer, got %v", order)
	}
	if want := time.Date(2024, 3, 1, 12, 0, 45, 0, time.UTC); !sameTime(order["order_updated_timestamp"], want) {
		t.Errorf("expected updated timestamp %v, got %v", want, order["order_updated_timestamp"])
	}
	if _, ok := order["order_prepare_for_timestamp"]; ok {
		t.Error("webhook order without prepare_for must not write the column")
	}
}

func TestHandleWebhookEventRules(t *testing.T) {
	testCases := []struct {
		name        string
		mutate      func(ev *entity.WebhookEvent)
		wantOutcome Outcome
		wantErr     error
		wantField   string
	}{
		{
			name:        "rejected order is acknowledged without ingestion",
			mutate:      func(ev *entity.WebhookEvent) { ev.Body.Order.Status = entity.StatusRejected },
			wantOutcome: OutcomeSkipped,
		},
		{
			name:        "canceled order is acknowledged without ingestion",
			mutate:      func(ev *entity.WebhookEvent) { ev.Body.Order.Status = entity.StatusCanceled },
			wantOutcome: OutcomeSkipped,
		},
		{
			name:        "item without pos_item_id",
			mutate:      func(ev *entity.WebhookEvent) { ev.Body.Order.Items[0].PosItemID = nil },
			wantOutcome: OutcomeSkipped,
			wantErr:     entity.ErrPosItemIDNotFound,
		},
		{
			name: "canceled order without pos_item_id is still rejected as malformed",
			mutate: func(ev *entity.WebhookEvent) {
				ev.Body.Order.Status = entity.StatusCanceled
				ev.Body.Order.Items[0].PosItemID = nil
			},
			wantOutcome: OutcomeSkipped,
			wantErr:     entity.ErrPosItemIDNotFound,
		},
		{
			name:        "envelope without event name",
			mutate:      func(ev *entity.WebhookEvent) { ev.Event = "" },
			wantOutcome: OutcomeSkipped,
			wantField:   "event",
		},
		{
			name: "rejected order without pos_item_id is acknowledged",
			mutate: func(ev *entity.WebhookEvent) {
				ev.Body.Order.Status = entity.StatusRejected
				ev.Body.Order.Items[0].PosItemID = nil
			},
			wantOutcome: OutcomeSkipped,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(nil)
			g := newTestIngester(store, entity.CatalogKeyPlatformID)
			ev := decodeEvent(t)
			tc.mutate(ev)

			outcome, _, err := g.HandleWebhookEvent(context.Background(), ev)
			var mp *entity.MalformedPayloadError
			switch {
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			case tc.wantField != "":
				if !errors.As(err, &mp) || mp.Field != tc.wantField {
					t.Fatalf("expected malformed %s, got %v", tc.wantField, err)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome != tc.wantOutcome {
				t.Errorf("expected outcome %d, got %d", tc.wantOutcome, outcome)
			}
			if n := store.count(storage.TableOrders); n != 0 {
				t.Errorf("expected no orders, got %d", n)
			}
		})
	}
}

func TestIngestRollsBackWholeOrderOnStorageError(t *testing.T) {
	store := newFakeStore(nil)
	store.failTable = storage.TableOrderItemModifiers
	g := newTestIngester(store, entity.CatalogKeyPlatformID)

	_, err := g.IngestWebhook(context.Background(), &decodeEvent(t).Body.Order)
	var se *entity.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	for _, table := range []string{storage.TableCustomers, storage.TableOrders, storage.TableItems, storage.TableOrderItems} {
		if n := store.count(table); n != 0 {
			t.Errorf("expected %s rolled back, got %d rows", table, n)
		}
	}
}

func TestIngestHistoricalUnknownPartner(t *testing.T) {
	store := newFakeStore(map[string]int64{"Bifteki": 3})
	g := newTestIngester(store, entity.CatalogKeyPlatformID)
	o := historicalOrder("gb:h-1", "2024-03-02T18:20:00Z")

	_, err := g.IngestHistorical(context.Background(), "Nowhere Diner", &o)
	var up *entity.UnknownPartnerError
	if !errors.As(err, &up) {
		t.Fatalf("expected UnknownPartnerError, got %v", err)
	}
	if n := store.count(storage.TableOrders); n != 0 {
		t.Errorf("orders must be unchanged, got %d rows", n)
	}
}

func TestIngestHistoricalRefreshesOrder(t *testing.T) {
	store := newFakeStore(map[string]int64{"Bifteki": 3})
	g := newTestIngester(store, entity.CatalogKeyPlatformID)
	ctx := context.Background()

	first := historicalOrder("gb:h-1", "2024-03-02T18:20:00Z")
	id1, err := g.IngestHistorical(ctx, "Bifteki", &first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := historicalOrder("gb:h-1", "2024-03-02T18:25:00Z")
	second.Status = "collected"
	id2, err := g.IngestHistorical(ctx, "Bifteki", &second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected same order id, got %d and %d", id1, id2)
	}

	order := store.only(t, storage.TableOrders)
	if order["order_status"] != "collected" || order["partner_id"] != int64(3) {
		t.Errorf("unexpected order row %v", order)
	}
	if want := time.Date(2024, 3, 2, 18, 25, 0, 0, time.UTC); !sameTime(order["order_prepare_for_timestamp"], want) {
		t.Errorf("expected prepare_for %v, got %v", want, order["order_prepare_for_timestamp"])
	}
	if _, ok := order["customer_id"]; ok {
		t.Error("historical import must not write customer_id")
	}
	if n := store.count(storage.TableCustomers); n != 0 {
		t.Errorf("historical import must not create customers, got %d", n)
	}
	if n := store.count(storage.TableOrderItems); n != 2 {
		t.Errorf("expected 2 order items, got %d", n)
	}
	if store.resolves != 1 {
		t.Errorf("expected partner resolved once thanks to the cache, got %d", store.resolves)
	}
	if store.resolvesOutsideTx != 0 {
		t.Errorf("partner lookup ran outside the order transaction %d time(s)", store.resolvesOutsideTx)
	}
}

func TestCatalogKey(t *testing.T) {
	renamed := func() *entity.OrderPayload {
		o := &decodeEvent(t).Body.Order
		o.ID = "gb:renamed"
		o.Items[0].Name = "Bifteki Wrap"
		return o
	}

	testCases := []struct {
		name      string
		key       entity.CatalogKey
		wantItems int
	}{
		{"platform id keeps one item across a rename", entity.CatalogKeyPlatformID, 1},
		{"name creates a new item on rename", entity.CatalogKeyName, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(nil)
			g := newTestIngester(store, tc.key)
			ctx := context.Background()

			if _, err := g.IngestWebhook(ctx, &decodeEvent(t).Body.Order); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := g.IngestWebhook(ctx, renamed()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n := store.count(storage.TableItems); n != tc.wantItems {
				t.Errorf("expected %d items, got %d", tc.wantItems, n)
			}
			if n := store.count(storage.TableOrders); n != 2 {
				t.Errorf("expected 2 orders, got %d", n)
			}
		})
	}

	t.Run("platform id falls back to name when absent", func(t *testing.T) {
		store := newFakeStore(map[string]int64{"Bifteki": 3})
		g := newTestIngester(store, entity.CatalogKeyPlatformID)
		o := historicalOrder("gb:h-9", "2024-03-02T18:20:00Z")
		o.Items[1].PosItemID = nil

		if _, err := g.IngestHistorical(context.Background(), "Bifteki", &o); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.tables[storage.TableItems]["item_name=Fries"]; !ok {
			t.Errorf("expected Fries keyed by name, got %v", store.tables[storage.TableItems])
		}
	})
}

func TestBackfillSkipsFailuresAndAdvancesCursor(t *testing.T) {
	store := newFakeStore(map[string]int64{"Bifteki": 3})
	g := newTestIngester(store, entity.CatalogKeyPlatformID)

	orders := []json.RawMessage{
		historicalRaw("gb:h-1", "2024-03-02T18:20:00Z"),
		historicalRaw("gb:h-2", "not a timestamp"),
		historicalRaw("gb:h-3", "2024-03-02T19:20:00Z"),
	}

	res, err := g.Backfill(context.Background(), "Bifteki", orders, BackfillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Ingested != 2 || len(res.Failures) != 1 {
		t.Fatalf("expected 2 ingested and 1 failure, got %+v", res)
	}
	f := res.Failures[0]
	if f.Position != 1 || f.OrderID != "gb:h-2" {
		t.Errorf("unexpected failure %+v", f)
	}
	var mp *entity.MalformedPayloadError
	if !errors.As(f.Err, &mp) || mp.Field != "prepare_for" {
		t.Errorf("expected malformed prepare_for, got %v", f.Err)
	}
	if n := store.count(storage.TableOrders); n != 2 {
		t.Errorf("expected 2 orders, got %d", n)
	}
	if pos := store.cursors["backfill:Bifteki"]; pos != 3 {
		t.Errorf("expected cursor 3, got %d", pos)
	}
}

func TestBackfillSkipsUndecodableOrder(t *testing.T) {
	store := newFakeStore(map[string]int64{"Bifteki": 3})
	g := newTestIngester(store, entity.CatalogKeyPlatformID)

	bad := strings.Replace(string(historicalRaw("gb:h-2", "2024-03-02T18:40:00Z")), `"quantity": 2`, `"quantity": "two"`, 1)
	orders := []json.RawMessage{
		historicalRaw("gb:h-1", "2024-03-02T18:20:00Z"),
		json.RawMessage(bad),
		historicalRaw("gb:h-3", "2024-03-02T19:20:00Z"),
	}

	res, err := g.Backfill(context.Background(), "Bifteki", orders, BackfillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Ingested != 2 || len(res.Failures) != 1 || res.Next != 3 {
		t.Fatalf("expected 2 ingested, 1 failure and next 3, got %+v", res)
	}
	f := res.Failures[0]
	if f.Position != 1 || f.OrderID != "gb:h-2" {
		t.Errorf("unexpected failure %+v", f)
	}
	if !entity.IsPermanent(f.Err) {
		t.Errorf("expected a malformed payload error, got %v", f.Err)
	}
	if pos := store.cursors["backfill:Bifteki"]; pos != 3 {
		t.Errorf("expected cursor 3, got %d", pos)
	}
}

func TestBackfillResumes(t *testing.T) {
	orders := []json.RawMessage{
		historicalRaw("gb:h-1", "2024-03-02T18:20:00Z"),
		historicalRaw("gb:h-2", "2024-03-02T18:40:00Z"),
		historicalRaw("gb:h-3", "2024-03-02T19:20:00Z"),
	}

	t.Run("from saved cursor", func(t *testing.T) {
		store := newFakeStore(map[string]int64{"Bifteki": 3})
		store.cursors["backfill:Bifteki"] = 2
		g := newTestIngester(store, entity.CatalogKeyPlatformID)

		res, err := g.Backfill(context.Background(), "Bifteki", orders, BackfillOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Start != 2 || res.Ingested != 1 {
			t.Errorf("expected to ingest only the last order, got %+v", res)
		}
		if _, ok := store.tables[storage.TableOrders]["platform_order_id=gb:h-3"]; !ok {
			t.Error("expected gb:h-3 ingested")
		}
	})

	t.Run("explicit offset overrides the cursor", func(t *testing.T) {
		store := newFakeStore(map[string]int64{"Bifteki": 3})
		store.cursors["backfill:Bifteki"] = 3
		g := newTestIngester(store, entity.CatalogKeyPlatformID)
		offset := int64(1)

		res, err := g.Backfill(context.Background(), "Bifteki", orders, BackfillOptions{Offset: &offset})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Ingested != 2 || res.Next != 3 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		store := newFakeStore(map[string]int64{"Bifteki": 3})
		g := newTestIngester(store, entity.CatalogKeyPlatformID)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := g.Backfill(ctx, "Bifteki", orders, BackfillOptions{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if n := store.count(storage.TableOrders); n != 0 {
			t.Errorf("expected nothing ingested, got %d", n)
		}
	})
}

// fakeResolver counts lookups so the cache behaviour is observable.
type fakeResolver struct {
	calls map[string]int
	lastQ storage.Querier
}

func (r *fakeResolver) ResolvePartner(ctx context.Context, q storage.Querier, name string) (int64, error) {
	r.calls[name]++
	r.lastQ = q
	if name == "missing" {
		return 0, &entity.UnknownPartnerError{Name: name}
	}
	return int64(len(name)), nil
}

func TestPartnerCache(t *testing.T) {
	newCache := func(capacity int) (*PartnerCache, *fakeResolver) {
		r := &fakeResolver{calls: map[string]int{}}
		c := NewPartnerCache(r, capacity)
		var tick int64
		c.now = func() time.Time { // монотонные часы, чтобы не спать в тестах
			tick++
			return time.Unix(tick, 0)
		}
		return c, r
	}
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		c, r := newCache(3)
		for i := 0; i < 3; i++ {
			if id, err := c.ResolvePartner(ctx, nil, "Bifteki"); err != nil || id != 7 {
				t.Fatalf("expected 7, got %d (%v)", id, err)
			}
		}
		if r.calls["Bifteki"] != 1 {
			t.Errorf("expected one lookup, got %d", r.calls["Bifteki"])
		}
	})

	t.Run("eviction of least recently used partner", func(t *testing.T) {
		c, r := newCache(2)
		c.ResolvePartner(ctx, nil, "a")
		c.ResolvePartner(ctx, nil, "bb")
		c.ResolvePartner(ctx, nil, "a") // a снова свежий
		c.ResolvePartner(ctx, nil, "ccc")

		if c.Len() != 2 {
			t.Fatalf("expected size 2, got %d", c.Len())
		}
		c.ResolvePartner(ctx, nil, "a")
		if r.calls["a"] != 1 {
			t.Error("recently used partner a should have stayed cached")
		}
		c.ResolvePartner(ctx, nil, "bb")
		if r.calls["bb"] != 2 {
			t.Error("least recently used partner bb should have been evicted")
		}
	})

	t.Run("miss reads through the caller's querier", func(t *testing.T) {
		c, r := newCache(2)
		tx := &fakeTx{}
		if _, err := c.ResolvePartner(ctx, tx, "Bifteki"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.lastQ != tx {
			t.Errorf("expected lookup through the transaction querier, got %v", r.lastQ)
		}
	})

	t.Run("unknown partner is not cached", func(t *testing.T) {
		c, r := newCache(2)
		for i := 0; i < 2; i++ {
			var up *entity.UnknownPartnerError
			if _, err := c.ResolvePartner(ctx, nil, "missing"); !errors.As(err, &up) {
				t.Fatalf("expected UnknownPartnerError, got %v", err)
			}
		}
		if r.calls["missing"] != 2 || c.Len() != 0 {
			t.Errorf("unknown partner must not be cached: calls=%d len=%d", r.calls["missing"], c.Len())
		}
	})
}
