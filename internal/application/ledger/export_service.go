package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Export formats
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// TableWriter encodes invoice read models as a table (CSV)
type TableWriter interface {
	Write(w io.Writer, invoices []ledger.InvoiceExport) error
}

// DocumentRenderer renders a single invoice document (PDF)
type DocumentRenderer interface {
	Render(ctx context.Context, exp *ledger.InvoiceExport) ([]byte, error)
}

// ObjectStorage stores export files and presigns download links
type ObjectStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// Document is an export ready to be streamed
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportLinkResponse points at an uploaded export
type ExportLinkResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
	Invoices  int       `json:"invoices"`
}

// ExportService turns invoices into CSV and PDF documents
type ExportService struct {
	invoices  *InvoiceService
	table     TableWriter
	renderer  DocumentRenderer
	storage   ObjectStorage
	linkTTL   time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// ExportServiceOption configures ExportService
type ExportServiceOption func(*ExportService)

// WithRenderer enables PDF documents
func WithRenderer(r DocumentRenderer) ExportServiceOption {
	return func(s *ExportService) {
		s.renderer = r
	}
}

// WithStorage enables uploaded exports
func WithStorage(st ObjectStorage, linkTTL time.Duration) ExportServiceOption {
	return func(s *ExportService) {
		s.storage = st
		s.linkTTL = linkTTL
	}
}

// NewExportService creates an ExportService writing tables with table
func NewExportService(invoices *InvoiceService, table TableWriter, logger *zap.Logger, opts ...ExportServiceOption) *ExportService {
	s := &ExportService{
		invoices:  invoices,
		table:     table,
		linkTTL:   15 * time.Minute,
		keyPrefix: "invoices",
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ContentTypes per format
var contentTypes = map[string]string{
	FormatCSV: "text/csv; charset=utf-8",
	FormatPDF: "application/pdf",
}

// ExportInvoice renders one invoice as csv or pdf
func (s *ExportService) ExportInvoice(ctx context.Context, id uuid.UUID, format string) (doc *Document, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "export", "export_invoice",
		attribute.String("invoice.id", id.String()),
		attribute.String("export.format", format),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if format == FormatPDF && s.renderer == nil {
		return nil, shared.NewValidationError("pdf export is not configured")
	}
	if _, ok := contentTypes[format]; !ok {
		return nil, shared.NewValidationError("unsupported export format %q", format)
	}

	exp, err := s.invoices.ExportInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch format {
	case FormatPDF:
		data, err = s.renderer.Render(ctx, exp)
	default:
		data, err = s.encodeTable([]ledger.InvoiceExport{*exp})
	}
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    exp.InvoiceNumber + "." + format,
		ContentType: contentTypes[format],
		Data:        data,
	}, nil
}

// ExportList uploads a CSV of every invoice matching filter and returns a
// presigned link to it
func (s *ExportService) ExportList(ctx context.Context, filter InvoiceListFilter) (resp *ExportLinkResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "export", "export_list")
	defer func() { telemetry.EndSpan(span, err) }()

	if s.storage == nil {
		return nil, shared.NewValidationError("export storage is not configured")
	}

	exports, err := s.invoices.ExportInvoices(ctx, filter)
	if err != nil {
		return nil, err
	}
	data, err := s.encodeTable(exports)
	if err != nil {
		return nil, err
	}

	now := s.invoices.now().UTC()
	key := fmt.Sprintf("%s/%s/%s.csv", s.keyPrefix, now.Format("2006/01/02"), uuid.New())
	if err := s.storage.Upload(ctx, key, data, contentTypes[FormatCSV]); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, key, s.linkTTL)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	s.logger.Info("invoice export uploaded",
		zap.String("key", key),
		zap.Int("invoices", len(exports)),
		zap.Int("bytes", len(data)),
	)
	return &ExportLinkResponse{URL: url, Key: key, ExpiresAt: expiresAt, Invoices: len(exports)}, nil
}

func (s *ExportService) encodeTable(exports []ledger.InvoiceExport) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.table.Write(&buf, exports); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return buf.Bytes(), nil
}
