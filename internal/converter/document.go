package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

const (
	textFontSize   = 12
	textLineHeight = 5.5 // mm
	textMargin     = 15  // mm
	unicodeFamily  = "qconverto-unicode"
)

// systemFonts are TrueType fonts with broad Unicode (including CJK) coverage, probed in order
// when document.font_path is empty. fpdf cannot read .ttc collections or CFF-based .otf files.
var systemFonts = []string{
	"/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf",
	"/usr/share/fonts/google-droid/DroidSansFallbackFull.ttf",
	"/usr/share/fonts/google-droid-sans-fonts/DroidSansFallbackFull.ttf",
	"/usr/share/fonts/truetype/arphic-gkai00mp/gkai00mp.ttf",
	"/usr/share/fonts/truetype/unifont/unifont.ttf",
	"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
	"/Library/Fonts/Arial Unicode.ttf",
	`C:\Windows\Fonts\simhei.ttf`,
	`C:\Windows\Fonts\simkai.ttf`,
	`C:\Windows\Fonts\arialuni.ttf`,
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
}

// findUnicodeFont returns the configured font, or the first system font that exists.
func findUnicodeFont(configured string) string {
	if configured != "" {
		return configured
	}
	for _, p := range systemFonts {
		if utils.FileExists(p) {
			return p
		}
	}
	return ""
}

// DocumentOptions configures the document strategy.
type DocumentOptions struct {
	Settings    models.DocumentSettings
	JPEGQuality int
}

// Document converts between pdf, txt and docx in process. Pairs it does not handle,
// including every .doc input, are left to the office strategy.
type Document struct {
	dpi         float64
	wrapWidth   int
	fontPath    string
	jpegQuality int
	validator   *Validator
	log         *utils.ComponentLogger
}

// NewDocument creates the document strategy.
func NewDocument(opts DocumentOptions) *Document {
	d := &Document{
		dpi:         opts.Settings.RenderDPI,
		wrapWidth:   opts.Settings.WrapWidth,
		fontPath:    findUnicodeFont(opts.Settings.FontPath),
		jpegQuality: opts.JPEGQuality,
		validator:   NewValidator(),
		log:         utils.NewComponentLogger(constants.StrategyDocument),
	}
	if d.dpi <= 0 {
		d.dpi = constants.DefaultRenderDPI
	}
	if d.wrapWidth <= 0 {
		d.wrapWidth = constants.DefaultWrapWidth
	}
	if d.jpegQuality <= 0 || d.jpegQuality > 100 {
		d.jpegQuality = constants.DefaultJPEGQuality
	}
	return d
}

// Name implements backend.Strategy.
func (d *Document) Name() string { return constants.StrategyDocument }

// Kind implements backend.Strategy.
func (d *Document) Kind() backend.Kind { return backend.KindLibrary }

// Attempt implements backend.Strategy.
func (d *Document) Attempt(ctx context.Context, req backend.Request, progress backend.ProgressFunc) (backend.Outcome, error) {
	from := sourceFormat(req)
	to := strings.TrimPrefix(req.TargetExt, ".")
	progress(0)

	if from == to {
		if err := utils.CopyFile(req.InputPath, req.OutputPath); err != nil {
			return backend.Outcome{}, fmt.Errorf("failed to copy document: %w", err)
		}
		progress(100)
		return backend.Outcome{}, nil
	}

	tmp := scratchOutput(req.ScratchDir, req.TargetExt)
	var (
		note string
		err  error
	)

	switch {
	case from == "pdf" && to == "jpg":
		return d.renderPages(ctx, req, progress)
	case from == "pdf" && to == "txt":
		err = d.pdfToText(ctx, req.InputPath, tmp, progress)
	case from == "pdf" && to == "docx":
		err = d.pdfToDocx(ctx, req.InputPath, tmp, progress)
	case from == "txt" && to == "pdf":
		note, err = d.textToPDF(req.InputPath, tmp)
	case from == "txt" && to == "docx":
		err = d.textToDocx(req.InputPath, tmp)
	case from == "docx" && to == "txt":
		err = docxToText(req.InputPath, tmp)
	default:
		return backend.Outcome{}, backend.Unsupported(req.InputExt, req.TargetExt)
	}
	if err != nil {
		_ = utils.RemoveIfExists(tmp)
		return backend.Outcome{}, err
	}

	if err := d.validator.ValidateFile(tmp); err != nil {
		return backend.Outcome{}, err
	}
	if err := utils.MoveFile(tmp, req.OutputPath); err != nil {
		return backend.Outcome{}, fmt.Errorf("failed to move output into place: %w", err)
	}
	progress(100)
	return backend.Outcome{Degraded: note != "", Note: note}, nil
}

// sourceFormat prefers the classified format over the file name.
func sourceFormat(req backend.Request) string {
	if req.DetectedFormat != "" {
		return req.DetectedFormat
	}
	return strings.TrimPrefix(req.InputExt, ".")
}

// openPDF opens a PDF and rejects documents without pages. An open failure is left to the
// next strategy, since LibreOffice repairs some files MuPDF rejects; an empty document is fatal.
func openPDF(path string) (*fitz.Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	if doc.NumPage() == 0 {
		_ = doc.Close()
		return nil, backend.Fatal(fmt.Errorf("pdf has no pages"))
	}
	return doc, nil
}

// pagePath names page n (0-based) of a multi-page render: page 0 keeps the output path.
func pagePath(output string, n int) string {
	if n == 0 {
		return output
	}
	ext := filepath.Ext(output)
	return filepath.Join(filepath.Dir(output), fmt.Sprintf("%s_%02d%s", utils.Stem(output), n+1, ext))
}

// renderPages writes one JPEG per page. Every page is rendered into the scratch directory
// before any file is moved next to the output.
func (d *Document) renderPages(ctx context.Context, req backend.Request, progress backend.ProgressFunc) (backend.Outcome, error) {
	doc, err := openPDF(req.InputPath)
	if err != nil {
		return backend.Outcome{}, err
	}
	defer func() { _ = doc.Close() }()

	n := doc.NumPage()
	rendered := make([]string, 0, n)
	cleanup := func(paths []string) {
		for _, p := range paths {
			_ = utils.RemoveIfExists(p)
		}
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			cleanup(rendered)
			return backend.Outcome{}, err
		}
		img, err := doc.ImageDPI(i, d.dpi)
		if err != nil {
			cleanup(rendered)
			return backend.Outcome{}, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		p := filepath.Join(req.ScratchDir, fmt.Sprintf("page_%03d.jpg", i+1))
		if err := writeJPEG(p, img, d.jpegQuality); err != nil {
			cleanup(rendered)
			return backend.Outcome{}, err
		}
		rendered = append(rendered, p)
		progress((i + 1) * 90 / n)
	}

	var moved, extras []string
	for i, src := range rendered {
		dst := pagePath(req.OutputPath, i)
		if err := utils.MoveFile(src, dst); err != nil {
			cleanup(moved)
			cleanup(rendered[i:])
			return backend.Outcome{}, fmt.Errorf("failed to move page %d: %w", i+1, err)
		}
		moved = append(moved, dst)
		if i > 0 {
			extras = append(extras, dst)
		}
	}

	progress(100)
	d.log.Debug("Rendered pdf pages", "pages", n, "dpi", d.dpi)
	return backend.Outcome{ExtraOutputs: extras}, nil
}

func writeJPEG(path string, img image.Image, quality int) (err error) {
	// #nosec G304 - path is inside the job scratch directory
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create page image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close page image: %w", cerr)
		}
	}()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}
	return nil
}

// pageTexts extracts the text of every page.
func pageTexts(ctx context.Context, path string, progress backend.ProgressFunc) ([]string, error) {
	doc, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = doc.Close() }()

	n := doc.NumPage()
	texts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text of page %d: %w", i+1, err)
		}
		texts = append(texts, text)
		progress((i + 1) * 90 / n)
	}
	return texts, nil
}

func (d *Document) pdfToText(ctx context.Context, in, out string, progress backend.ProgressFunc) error {
	texts, err := pageTexts(ctx, in, progress)
	if err != nil {
		return err
	}
	content := strings.Join(texts, "\n")
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("pdf contains no extractable text")
	}
	if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write text: %w", err)
	}
	return nil
}

func (d *Document) pdfToDocx(ctx context.Context, in, out string, progress backend.ProgressFunc) error {
	texts, err := pageTexts(ctx, in, progress)
	if err != nil {
		return err
	}
	sections := make([]docxSection, 0, len(texts))
	for i, text := range texts {
		sections = append(sections, docxSection{
			Heading:    fmt.Sprintf("Page %d", i+1),
			Paragraphs: nonEmptyLines(text),
		})
	}
	return writeDocx(out, utils.Stem(in), sections)
}

func (d *Document) textToDocx(in, out string) error {
	text, err := readText(in)
	if err != nil {
		return err
	}
	return writeDocx(out, "", []docxSection{{Paragraphs: strings.Split(text, "\n")}})
}

func docxToText(in, out string) error {
	text, err := readDocxText(in)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(text), 0o600); err != nil {
		return fmt.Errorf("failed to write text: %w", err)
	}
	return nil
}

// textToPDF lays out plain text on A4 pages, wrapping at the configured width. It returns a
// note when characters had to be dropped because no Unicode font could be loaded.
func (d *Document) textToPDF(in, out string) (string, error) {
	text, err := readText(in)
	if err != nil {
		return "", err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(textMargin, textMargin, textMargin)
	pdf.SetAutoPageBreak(true, textMargin)

	unicodeFont := d.loadUnicodeFont(pdf)
	var note string
	tr := func(s string) string { return s }
	if unicodeFont {
		pdf.SetFont(unicodeFamily, "", textFontSize)
	} else {
		pdf.SetFont("Helvetica", "", textFontSize)
		// core fonts are cp1252
		tr = pdf.UnicodeTranslatorFromDescriptor("")
		if !representableInCP1252(text) {
			note = "no Unicode font available (set document.font_path); characters outside Windows-1252 were dropped"
		}
	}
	pdf.AddPage()

	width, _ := pdf.GetPageSize()
	width -= 2 * textMargin
	for _, line := range strings.Split(text, "\n") {
		for _, wrapped := range wrapLine(line, d.wrapWidth) {
			pieces := []string{wrapped}
			if unicodeFont && wrapped != "" {
				// wide glyphs can overflow a rune-count wrap
				pieces = pdf.SplitText(wrapped, width)
			}
			for _, piece := range pieces {
				pdf.CellFormat(0, textLineHeight, tr(piece), "", 1, "L", false, 0, "")
			}
		}
	}

	if err := pdf.OutputFileAndClose(out); err != nil {
		return "", fmt.Errorf("failed to write pdf: %w", err)
	}
	if note != "" {
		d.log.Warn("Text converted with a Latin-only font", "input", in)
	}
	return note, nil
}

// loadUnicodeFont registers the configured TrueType font and reports whether it can be used.
func (d *Document) loadUnicodeFont(pdf *fpdf.Fpdf) bool {
	if d.fontPath == "" {
		return false
	}
	// #nosec G304 - path comes from configuration or the built-in font list
	data, err := os.ReadFile(d.fontPath)
	if err != nil {
		d.log.Warn("Failed to read font", "path", d.fontPath, "error", err)
		return false
	}
	pdf.AddUTF8FontFromBytes(unicodeFamily, "", data)
	if err := pdf.Error(); err != nil {
		d.log.Warn("Failed to load font", "path", d.fontPath, "error", err)
		pdf.ClearError()
		return false
	}
	return true
}

func representableInCP1252(text string) bool {
	_, err := charmap.Windows1252.NewEncoder().String(text)
	return err == nil
}

// readText reads a text file as UTF-8. Invalid UTF-8 is decoded as GBK when that yields
// Chinese text cleanly, and as Latin-1 otherwise.
func readText(path string) (string, error) {
	// #nosec G304 - path is the job input
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	if !utf8.Valid(data) {
		if decoded, ok := decodeGBK(data); ok {
			data = decoded
		} else {
			decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
			if err != nil {
				return "", fmt.Errorf("failed to decode text: %w", err)
			}
			data = decoded
		}
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.TrimPrefix(text, "\ufeff"), nil
}

func decodeGBK(data []byte) ([]byte, bool) {
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
		return nil, false
	}
	for _, r := range string(decoded) {
		if unicode.Is(unicode.Han, r) {
			return decoded, true
		}
	}
	return nil, false
}

// wrapLine splits line into chunks of at most width runes, breaking at the last space when possible.
func wrapLine(line string, width int) []string {
	runes := []rune(strings.TrimRight(line, " \t\r"))
	if len(runes) <= width {
		return []string{string(runes)}
	}

	var out []string
	for len(runes) > width {
		cut := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimRight(string(runes[:cut]), " "))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
