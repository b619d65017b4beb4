package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ContentTypePDF is the media type of PDFRenderer output
const ContentTypePDF = "application/pdf"

const (
	defaultPDFTimeout = 30 * time.Second

	// A4 in inches
	a4Width  = 8.27
	a4Height = 11.69
	marginIn = 0.4
)

// ErrEmptyPDF is returned when the browser produced no output
var ErrEmptyPDF = errors.New("generated PDF is empty")

// PDFConfig configures PDFRenderer
type PDFConfig struct {
	// ChromePath overrides the browser binary; empty uses chromedp's lookup
	ChromePath string
	// RemoteURL attaches to a running browser instead of launching one
	RemoteURL string
	Timeout   time.Duration
	NoSandbox bool
	Logger    *zap.Logger
}

// PDFRenderer prints an invoice document through headless Chrome
type PDFRenderer struct {
	cfg         PDFConfig
	logger      *zap.Logger
	tmpl        *template.Template
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewPDFRenderer creates the renderer and its browser allocator. The browser
// itself starts lazily on the first Render.
func NewPDFRenderer(cfg PDFConfig) (*PDFRenderer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPDFTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := parseInvoiceTemplate()
	if err != nil {
		return nil, err
	}

	r := &PDFRenderer{cfg: cfg, logger: logger, tmpl: tmpl}
	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r, nil
}

// RenderHTML executes the invoice template
func (r *PDFRenderer) RenderHTML(exp *ledger.InvoiceExport) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, exp); err != nil {
		return "", fmt.Errorf("render invoice %s: %w", exp.InvoiceNumber, err)
	}
	return buf.String(), nil
}

// Render produces the PDF document of one invoice
func (r *PDFRenderer) Render(ctx context.Context, exp *ledger.InvoiceExport) ([]byte, error) {
	html, err := r.RenderHTML(exp)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	// the browser context must also stop when the caller gives up
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4Width).
				WithPaperHeight(a4Height).
				WithMarginTop(marginIn).
				WithMarginBottom(marginIn).
				WithMarginLeft(marginIn).
				WithMarginRight(marginIn).
				Do(ctx)
			pdf = data
			return err
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("pdf rendering timed out after %v: %w", r.cfg.Timeout, err)
		}
		r.logger.Error("chromedp rendering failed",
			zap.String("invoice_number", exp.InvoiceNumber),
			zap.Error(err))
		return nil, fmt.Errorf("pdf rendering failed: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyPDF
	}

	r.logger.Info("invoice pdf rendered",
		zap.String("invoice_number", exp.InvoiceNumber),
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", time.Since(start)))
	return pdf, nil
}

// Close stops the browser allocator
func (r *PDFRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}
