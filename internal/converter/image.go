package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"
	"os"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/utils"
)

// ImageCodec converts still images with pure Go codecs.
// It decodes png, jpeg, gif, bmp and webp and encodes png, jpeg and pdf.
type ImageCodec struct {
	jpegQuality int
	validator   *Validator
}

// NewImageCodec creates the image strategy.
func NewImageCodec(jpegQuality int) *ImageCodec {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = constants.DefaultJPEGQuality
	}
	return &ImageCodec{jpegQuality: jpegQuality, validator: NewValidator()}
}

// Name implements backend.Strategy.
func (c *ImageCodec) Name() string { return constants.StrategyImage }

// Kind implements backend.Strategy.
func (c *ImageCodec) Kind() backend.Kind { return backend.KindLibrary }

// Attempt implements backend.Strategy.
func (c *ImageCodec) Attempt(ctx context.Context, req backend.Request, progress backend.ProgressFunc) (backend.Outcome, error) {
	switch req.TargetExt {
	case ".png", ".jpg", ".jpeg", ".pdf":
	default:
		return backend.Outcome{}, backend.Unsupported(req.InputExt, req.TargetExt)
	}

	progress(0)
	img, err := decodeImage(req.InputPath)
	if err != nil {
		return backend.Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return backend.Outcome{}, err
	}
	progress(50)

	tmp := scratchOutput(req.ScratchDir, req.TargetExt)
	if err := c.encode(img, req.TargetExt, tmp); err != nil {
		_ = utils.RemoveIfExists(tmp)
		return backend.Outcome{}, err
	}
	if err := c.validator.ValidateFile(tmp); err != nil {
		return backend.Outcome{}, err
	}
	if err := utils.MoveFile(tmp, req.OutputPath); err != nil {
		return backend.Outcome{}, fmt.Errorf("failed to move output into place: %w", err)
	}
	progress(100)
	return backend.Outcome{}, nil
}

func decodeImage(path string) (image.Image, error) {
	// #nosec G304 - path is the job input
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("no Go decoder for this image: %w", err)
		}
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (c *ImageCodec) encode(img image.Image, ext, path string) (err error) {
	if ext == ".pdf" {
		return writeImagePDF(img, path)
	}

	// #nosec G304 - path is inside the job scratch directory
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()

	switch ext {
	case ".png":
		err = png.Encode(f, img)
	default:
		err = jpeg.Encode(f, flatten(img), &jpeg.Options{Quality: c.jpegQuality})
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ext, err)
	}
	return nil
}

// flatten composites img over white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// writeImagePDF writes a single-page PDF whose page matches the image size at 72 DPI.
func writeImagePDF(img image.Image, path string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())

	// the size is taken as portrait; "L" would swap it
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, &buf)
	pdf.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
