package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Sree5835/dynamic-pricing/config"
	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/Sree5835/dynamic-pricing/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func ptr[T any](v T) *T { return &v }

type fakeLoader struct {
	rows []entity.OrderRow
	err  error
}

func (l fakeLoader) LoadOrders(ctx context.Context, partnerName string) ([]entity.OrderRow, error) {
	return l.rows, l.err
}

type fakeUploader struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (u *fakeUploader) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.bucket, u.key, u.contentType = aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	u.body = body
	return &s3.PutObjectOutput{}, nil
}

func sampleRows() []entity.OrderRow {
	placed := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)
	return []entity.OrderRow{
		{
			OrderID: 1, PlatformOrderID: "gb:1", PlatformOrderNumber: 42, OrderStatus: "accepted",
			OrderPlacedAt: placed, OrderUpdatedAt: ptr(placed.Add(time.Minute)),
			PartnerID: 3, PartnerName: "Bifteki",
			ItemID: ptr(int64(7)), ItemName: ptr("Gyros"), ItemQuantity: ptr(int64(1)), ItemFractionalPrice: ptr(int64(1250)),
			ModifierID: ptr(int64(9)), ModifierName: ptr("Extra, feta"), ModifierQuantity: ptr(int64(1)),
			ModifierFractionalPrice: ptr(int64(150)),
		},
		{
			OrderID: 1, PlatformOrderID: "gb:1", PlatformOrderNumber: 42, OrderStatus: "accepted",
			OrderPlacedAt: placed, PartnerID: 3, PartnerName: "Bifteki",
			ItemID: ptr(int64(8)), ItemName: ptr("Chips"), ItemQuantity: ptr(int64(2)), ItemFractionalPrice: ptr(int64(300)),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2", len(records))
	}
	if len(records[0]) != len(storage.OrderRowColumns) || records[0][0] != "order_id" {
		t.Errorf("header = %v", records[0])
	}

	col := func(name string) int {
		for i, c := range storage.OrderRowColumns {
			if c == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}
	first, second := records[1], records[2]
	if first[col("order_placed_timestamp")] != "2024-03-01T12:00:05Z" {
		t.Errorf("placed = %q", first[col("order_placed_timestamp")])
	}
	if first[col("modifier_name")] != "Extra, feta" {
		t.Errorf("modifier_name = %q, want the comma kept inside the field", first[col("modifier_name")])
	}
	if second[col("modifier_id")] != "" || second[col("order_updated_timestamp")] != "" {
		t.Errorf("NULL columns should be empty, got modifier_id %q updated %q",
			second[col("modifier_id")], second[col("order_updated_timestamp")])
	}
	if second[col("item_quantity")] != "2" {
		t.Errorf("item_quantity = %q, want 2", second[col("item_quantity")])
	}
}

func TestExport(t *testing.T) {
	cfg := config.Export{Bucket: "order-exports", Prefix: "orders"}
	now := func() time.Time { return time.Date(2024, 3, 1, 15, 4, 5, 0, time.FixedZone("CET", 3600)) }

	tests := []struct {
		name      string
		cfg       config.Export
		loader    fakeLoader
		uploadErr error
		wantErr   bool
		wantKey   string
		wantRows  int
	}{
		{
			name:     "uploads CSV under partner and UTC timestamp",
			cfg:      cfg,
			loader:   fakeLoader{rows: sampleRows()},
			wantKey:  "orders/Bifteki/20240301T140405Z.csv",
			wantRows: 2,
		},
		{
			name:     "empty load still uploads the header",
			cfg:      cfg,
			loader:   fakeLoader{},
			wantKey:  "orders/Bifteki/20240301T140405Z.csv",
			wantRows: 0,
		},
		{
			name:    "load failure",
			cfg:     cfg,
			loader:  fakeLoader{err: errors.New("connection refused")},
			wantErr: true,
		},
		{
			name:      "upload failure",
			cfg:       cfg,
			loader:    fakeLoader{rows: sampleRows()},
			uploadErr: errors.New("AccessDenied"),
			wantErr:   true,
		},
		{
			name:    "no bucket",
			cfg:     config.Export{Prefix: "orders"},
			loader:  fakeLoader{rows: sampleRows()},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUploader{err: tt.uploadErr}
			e := NewExporter(tt.loader, up, tt.cfg)
			e.now = now

			key, rows, err := e.Export(context.Background(), "Bifteki")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Export() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if key != tt.wantKey || up.key != tt.wantKey {
				t.Errorf("key = %s (uploaded %s), want %s", key, up.key, tt.wantKey)
			}
			if rows != tt.wantRows {
				t.Errorf("rows = %d, want %d", rows, tt.wantRows)
			}
			if up.bucket != "order-exports" || up.contentType != "text/csv" {
				t.Errorf("bucket %s content type %s", up.bucket, up.contentType)
			}
			records, err := csv.NewReader(bytes.NewReader(up.body)).ReadAll()
			if err != nil {
				t.Fatalf("uploaded body is not CSV: %v", err)
			}
			if len(records) != tt.wantRows+1 {
				t.Errorf("uploaded %d records, want %d", len(records), tt.wantRows+1)
			}
		})
	}
}
