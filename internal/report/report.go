// Package report exports a consultation as a PDF. Layout is manual: page
// breaks are placed explicitly so images and paragraphs never straddle a
// page edge, and the document renders fully in memory before anything
// touches disk.
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/drai-ai/drai/internal/chat"
	"github.com/drai-ai/drai/internal/log"
)

// ErrExportFailed wraps any rendering or write failure.
var ErrExportFailed = errors.New("report export failed")

const (
	reportTitle = "AI Doctor - Medical Report"
	disclaimer  = "Disclaimer: AI-generated advice. Consult a doctor for serious concerns."

	pageMarginMM = 15.0
	imageWidthMM = 100.0
	lineHeightMM = 5.5
	maxImageMB   = 20
)

// Result describes a finished export.
type Result struct {
	Path     string
	Pages    int
	Breaks   int // explicit page breaks; Pages == Breaks+1
	Messages int
}

// Exporter renders sessions to PDF. The HTTP client fetches generated image
// URLs; a failed fetch degrades to a note in the document.
type Exporter struct {
	client *http.Client
}

func NewExporter() *Exporter {
	return &Exporter{client: &http.Client{Timeout: 30 * time.Second}}
}

// Filename derives the export file name from a timestamp.
func Filename(now time.Time) string {
	return fmt.Sprintf("DrAI_Complete_Report_%d.pdf", now.UnixMilli())
}

// Export writes the session transcript to dir and returns where it landed.
// Nothing is written if rendering fails.
func (e *Exporter) Export(ctx context.Context, sess *chat.Session, dir string) (Result, error) {
	var buf bytes.Buffer
	res, err := e.render(ctx, sess, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	path := filepath.Join(dir, Filename(time.Now()))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("%w: cannot write: %w", ErrExportFailed, err)
	}
	res.Path = path
	return res, nil
}

func (e *Exporter) render(ctx context.Context, sess *chat.Session, w io.Writer) (Result, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMarginMM, pageMarginMM, pageMarginMM)
	pdf.SetAutoPageBreak(false, pageMarginMM)
	pdf.AliasNbPages("{nb}")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	// Every page carries the disclaimer and the page stamp.
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMarginMM)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 4, tr(disclaimer), "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	doc := &layout{pdf: pdf, tr: tr}
	doc.newPage()

	pageW, _ := pdf.GetPageSize()
	textW := pageW - 2*pageMarginMM

	pdf.SetFont("Arial", "B", 16)
	doc.ensure(10)
	pdf.CellFormat(0, 10, tr(reportTitle), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	doc.ensure(6)
	pdf.CellFormat(0, 6, tr(sess.Title), "", 1, "C", false, 0, "")
	doc.ensure(6)
	pdf.CellFormat(0, 6, sess.CreatedAt.Format("January 2, 2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	count := 0
	for _, msg := range sess.Messages {
		doc.message(e, ctx, msg, textW)
		count++
	}

	if err := pdf.Output(w); err != nil {
		return Result{}, fmt.Errorf("cannot render report: %w", err)
	}
	return Result{Pages: doc.pages, Breaks: doc.breaks, Messages: count}, nil
}

// layout tracks explicit page breaks.
type layout struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	pages  int
	breaks int
}

func (l *layout) newPage() {
	if l.pages > 0 {
		l.breaks++
	}
	l.pages++
	l.pdf.AddPage()
}

// ensure breaks the page when fewer than h millimeters remain.
func (l *layout) ensure(h float64) {
	_, pageH := l.pdf.GetPageSize()
	if l.pdf.GetY()+h > pageH-pageMarginMM-10 {
		l.newPage()
	}
}

func (l *layout) paragraph(text string, width float64) {
	lines := l.pdf.SplitLines([]byte(l.tr(text)), width)
	for _, line := range lines {
		l.ensure(lineHeightMM)
		l.pdf.CellFormat(width, lineHeightMM, string(line), "", 1, "L", false, 0, "")
	}
}

func (l *layout) message(e *Exporter, ctx context.Context, msg chat.Message, width float64) {
	label := "Dr. AI"
	if msg.Role == chat.RoleUser {
		label = "You"
	}

	l.pdf.SetFont("Arial", "B", 11)
	l.ensure(2 * lineHeightMM)
	l.pdf.CellFormat(width, lineHeightMM, l.tr(label), "", 1, "L", false, 0, "")

	l.pdf.SetFont("Arial", "", 10)
	if msg.Text != "" {
		l.paragraph(plainText(msg.Text), width)
	}

	if msg.InlineImage != nil {
		l.inlineImage(msg.InlineImage)
	}
	if msg.GeneratedImage != "" {
		l.remoteImage(e, ctx, msg.GeneratedImage)
	}
	l.pdf.Ln(3)
}

func (l *layout) inlineImage(img *chat.ImagePayload) {
	data, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		l.note("[attached image could not be decoded]")
		return
	}
	l.placeImage(data, img.MediaType, fmt.Sprintf("inline-%d", l.pdf.PageNo()*1000+int(l.pdf.GetY())))
}

func (l *layout) remoteImage(e *Exporter, ctx context.Context, url string) {
	data, mediaType, err := e.fetch(ctx, url)
	if err != nil {
		log.Warn("cannot fetch generated image for report", "url", url, "error", err)
		l.note("[generated image unavailable: " + url + "]")
		return
	}
	l.placeImage(data, mediaType, url)
}

func (l *layout) placeImage(data []byte, mediaType, name string) {
	imageType := strings.TrimPrefix(mediaType, "image/")
	if imageType == "jpg" {
		imageType = "jpeg"
	}
	info := l.pdf.RegisterImageOptionsReader(name,
		gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true},
		bytes.NewReader(data))
	if l.pdf.Err() {
		// Unsupported format; clear the error so the rest still renders.
		l.pdf.ClearError()
		l.note("[image format not supported in report]")
		return
	}
	height := imageWidthMM * info.Height() / info.Width()
	l.ensure(height + 2)
	l.pdf.ImageOptions(name, pageMarginMM, l.pdf.GetY(), imageWidthMM, height, true,
		gofpdf.ImageOptions{ImageType: imageType}, 0, "")
}

func (l *layout) note(text string) {
	l.pdf.SetFont("Arial", "I", 9)
	l.ensure(lineHeightMM)
	l.pdf.CellFormat(0, lineHeightMM, l.tr(text), "", 1, "L", false, 0, "")
	l.pdf.SetFont("Arial", "", 10)
}

func (e *Exporter) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageMB<<20))
	if err != nil {
		return nil, "", err
	}
	mediaType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, "", fmt.Errorf("not an image: %s", mediaType)
	}
	return data, mediaType, nil
}

// plainText strips markdown markers for the PDF body, the same set the
// speech sanitizer removes.
func plainText(text string) string {
	r := strings.NewReplacer("*", "", "#", "", "_", "", "`", "")
	return r.Replace(text)
}
