// пакет export выгружает строки LoadOrders в CSV и кладёт их в S3-совместимое хранилище

package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/Sree5835/dynamic-pricing/config"
	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/Sree5835/dynamic-pricing/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type OrderLoader interface {
	LoadOrders(ctx context.Context, partnerName string) ([]entity.OrderRow, error)
}

// Uploader is the part of *s3.Client the exporter uses.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a client for AWS or, when cfg.Endpoint is set, for any
// S3-compatible store (R2, MinIO). Static keys win over the default chain.
func NewS3Client(ctx context.Context, cfg config.Export) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type Exporter struct {
	loader OrderLoader
	client Uploader
	bucket string
	prefix string
	now    func() time.Time
}

func NewExporter(loader OrderLoader, client Uploader, cfg config.Export) *Exporter {
	return &Exporter{loader: loader, client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, now: time.Now}
}

// Key is <prefix>/<partner>/<UTC timestamp>.csv.
func (e *Exporter) Key(partnerName string) string {
	return path.Join(e.prefix, partnerName, e.now().UTC().Format("20060102T150405Z")+".csv")
}

// Export uploads the partner's bulk load as one CSV object and returns its key.
func (e *Exporter) Export(ctx context.Context, partnerName string) (string, int, error) {
	if e.bucket == "" {
		return "", 0, fmt.Errorf("export.bucket is not configured")
	}

	rows, err := e.loader.LoadOrders(ctx, partnerName)
	if err != nil {
		return "", 0, fmt.Errorf("failed to load orders of %s: %w", partnerName, err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return "", 0, err
	}

	key := e.Key(partnerName)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	slog.Info("Orders exported", "partner", partnerName, "rows", len(rows), "bucket", e.bucket, "key", key)
	return key, len(rows), nil
}

// WriteCSV writes the header and one record per row. NULLs become empty
// fields, timestamps are RFC 3339.
func WriteCSV(w io.Writer, rows []entity.OrderRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(storage.OrderRowColumns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(record(&rows[i])); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(r *entity.OrderRow) []string {
	return []string{
		strconv.FormatInt(r.OrderID, 10),
		r.PlatformOrderID,
		strconv.FormatInt(r.PlatformOrderNumber, 10),
		r.OrderStatus,
		r.OrderPlacedAt.Format(time.RFC3339),
		optTime(r.OrderUpdatedAt),
		optTime(r.OrderPrepareForAt),
		optTime(r.OrderStartPreppingAt),
		optInt(r.CustomerID),
		optStr(r.FirstName),
		optStr(r.ContactNumber),
		optStr(r.ContactAccessCode),
		strconv.FormatInt(r.PartnerID, 10),
		r.PartnerName,
		optInt(r.ItemID),
		optStr(r.PlatformItemID),
		optStr(r.ItemName),
		optStr(r.ItemOperationalName),
		optInt(r.ItemFractionalCost),
		optInt(r.ItemQuantity),
		optInt(r.ItemFractionalPrice),
		optInt(r.ModifierID),
		optStr(r.PlatformModifierID),
		optStr(r.ModifierName),
		optStr(r.ModifierOperationalName),
		optInt(r.ModifierQuantity),
		optInt(r.ModifierFractionalPrice),
	}
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.RFC3339)
}
