// Package classifier decides the category of an input file from its extension and magic bytes.
package classifier

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/catalog"
	"github.com/Qwejay/Qconverto/internal/signature"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// ErrUnclassifiable is wrapped by the UnsupportedFileType error returned when neither the
// content nor the extension identify a category.
var ErrUnclassifiable = errors.New("file type could not be determined")

// textExtensions are sniffed for plain text when no signature matches.
var textExtensions = map[string]string{
	".txt": "txt",
}

// Classifier is safe for concurrent use; it holds no per-file state.
type Classifier struct {
	matcher    *signature.Matcher
	catalog    *catalog.Catalog
	headerSize int
	log        *utils.ComponentLogger
}

// New creates a Classifier. headerSize is raised to the matcher's minimum when smaller,
// and defaults to constants.DefaultHeaderSize when zero.
func New(m *signature.Matcher, c *catalog.Catalog, headerSize int) *Classifier {
	if headerSize <= 0 {
		headerSize = constants.DefaultHeaderSize
	}
	if headerSize < m.MinHeaderSize() {
		headerSize = m.MinHeaderSize()
	}
	return &Classifier{
		matcher:    m,
		catalog:    c,
		headerSize: headerSize,
		log:        utils.NewComponentLogger("classifier"),
	}
}

// HeaderSize returns the number of leading bytes read from each file.
func (c *Classifier) HeaderSize() int {
	return c.headerSize
}

// Classify reads the header of path and classifies it.
func (c *Classifier) Classify(path string) (*models.ClassificationResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.NewError(models.ErrFileNotFound, path, "input does not exist", err)
		}
		return nil, models.NewError(models.ErrIO, path, "failed to stat input", err)
	}
	if info.IsDir() {
		return nil, models.NewError(models.ErrFileNotFound, path, "input is a directory", nil)
	}

	header, err := readHeader(path, c.headerSize)
	if err != nil {
		return nil, models.NewError(models.ErrIO, path, "failed to read header", err)
	}
	return c.ClassifyHeader(path, header)
}

// ClassifyHeader classifies a file named path whose leading bytes are header.
func (c *Classifier) ClassifyHeader(path string, header []byte) (*models.ClassificationResult, error) {
	ext := catalog.NormalizeExtension(filepath.Ext(path))
	res := &models.ClassificationResult{Path: path, MatchedExtension: ext}
	extCat, extKnown := c.catalog.CategoryForExtension(ext)

	var candidates []signature.Candidate
	if len(header) > 0 {
		var err error
		candidates, err = c.matcher.Identify(header)
		if err != nil {
			return nil, fmt.Errorf("failed to identify signature: %w", err)
		}
	}

	if top, ok := decisive(candidates); ok {
		res.Category = top.Category
		res.DetectedFormat = top.Format
		res.Confidence = models.ConfidenceSignatureConfirmed
		if extKnown && extCat != top.Category {
			c.log.Debug("Signature overrides extension",
				"path", path, "extension", ext, "extension_category", extCat, "detected", top.Format)
		}
		return res, nil
	}

	if format, ok := textExtensions[ext]; ok && len(header) > 0 && !enry.IsBinary(header) {
		res.Category = models.CategoryDocument
		res.DetectedFormat = format
		res.Confidence = models.ConfidenceSignatureConfirmed
		return res, nil
	}

	if extKnown {
		res.Category = extCat
		res.DetectedFormat = strings.TrimPrefix(ext, ".")
		res.Confidence = models.ConfidenceExtensionOnly
		return res, nil
	}

	return res, &models.ConversionError{
		Kind:    models.ErrUnsupportedFileType,
		Path:    path,
		Message: fmt.Sprintf("unrecognized content and extension %q", ext),
		Err:     ErrUnclassifiable,
	}
}

// decisive returns the top candidate unless another candidate of the same matched length
// belongs to a different category. Candidates are sorted longest match first.
func decisive(candidates []signature.Candidate) (signature.Candidate, bool) {
	if len(candidates) == 0 {
		return signature.Candidate{}, false
	}
	top := candidates[0]
	for _, c := range candidates[1:] {
		if c.MatchedLength != top.MatchedLength {
			break
		}
		if c.Category != top.Category {
			return signature.Candidate{}, false
		}
	}
	return top, true
}

func readHeader(path string, size int) ([]byte, error) {
	// #nosec G304 - path is the caller's input file
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
