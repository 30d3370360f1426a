// Package catalog holds the per-category table of legal input and output extensions.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Qwejay/Qconverto/models"
)

// Entry lists the extensions a category accepts and produces.
// Recommended is the preferred output order and must be a subset of Outputs.
type Entry struct {
	Category    models.Category
	Inputs      []string
	Outputs     []string
	Recommended []string
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	entries []Entry
	byCat   map[models.Category]int
}

// NormalizeExtension lower-cases ext and ensures a leading dot. An empty ext stays empty.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

func normalizeAll(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, NormalizeExtension(e))
	}
	return out
}

// New builds a catalog. Entry order is the catalog order used for extension lookups.
func New(entries ...Entry) (*Catalog, error) {
	c := &Catalog{byCat: make(map[models.Category]int, len(entries))}
	for _, e := range entries {
		if !e.Category.Valid() {
			return nil, fmt.Errorf("invalid category %q", e.Category)
		}
		if _, dup := c.byCat[e.Category]; dup {
			return nil, fmt.Errorf("duplicate catalog entry for %s", e.Category)
		}
		e.Inputs = normalizeAll(e.Inputs)
		e.Outputs = normalizeAll(e.Outputs)
		e.Recommended = normalizeAll(e.Recommended)
		for _, r := range e.Recommended {
			if !slices.Contains(e.Outputs, r) {
				return nil, fmt.Errorf("%s: recommended extension %s is not an allowed output", e.Category, r)
			}
		}
		c.byCat[e.Category] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(
		Entry{
			Category:    models.CategoryImage,
			Inputs:      []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp", ".ico"},
			Outputs:     []string{".jpg", ".jpeg", ".png", ".webp", ".pdf"},
			Recommended: []string{".pdf", ".png", ".jpg", ".webp"},
		},
		Entry{
			Category:    models.CategoryAudio,
			Inputs:      []string{".mp3", ".wav", ".flac", ".ogg", ".m4a", ".mp4", ".aac", ".ape", ".wv"},
			Outputs:     []string{".mp3", ".wav", ".flac", ".ogg", ".m4a"},
			Recommended: []string{".mp3", ".flac", ".wav"},
		},
		Entry{
			Category:    models.CategoryVideo,
			Inputs:      []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv"},
			Outputs:     []string{".mp4", ".avi", ".mov", ".mkv", ".wmv"},
			Recommended: []string{".mp4", ".mkv", ".avi"},
		},
		Entry{
			Category:    models.CategoryDocument,
			Inputs:      []string{".pdf", ".doc", ".docx", ".txt"},
			Outputs:     []string{".pdf", ".docx", ".txt", ".jpg"},
			Recommended: []string{".pdf", ".docx", ".txt"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Categories returns the categories in catalog order.
func (c *Catalog) Categories() []models.Category {
	out := make([]models.Category, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Category)
	}
	return out
}

// Entry returns a copy of the entry for cat.
func (c *Catalog) Entry(cat models.Category) (Entry, bool) {
	i, ok := c.byCat[cat]
	if !ok {
		return Entry{}, false
	}
	e := c.entries[i]
	return Entry{
		Category:    e.Category,
		Inputs:      slices.Clone(e.Inputs),
		Outputs:     slices.Clone(e.Outputs),
		Recommended: slices.Clone(e.Recommended),
	}, true
}

// AllowedInputs returns the input extensions of cat.
func (c *Catalog) AllowedInputs(cat models.Category) []string {
	e, _ := c.Entry(cat)
	return e.Inputs
}

// AllowedOutputs returns the output extensions of cat.
func (c *Catalog) AllowedOutputs(cat models.Category) []string {
	e, _ := c.Entry(cat)
	return e.Outputs
}

// IsValidConversion reports whether cat may be converted to outExt.
func (c *Catalog) IsValidConversion(cat models.Category, outExt string) bool {
	i, ok := c.byCat[cat]
	if !ok {
		return false
	}
	return slices.Contains(c.entries[i].Outputs, NormalizeExtension(outExt))
}

// Recommend returns the preferred output extension for cat.
// Without a usable recommendation it falls back to the first allowed output.
func (c *Catalog) Recommend(cat models.Category) (string, error) {
	i, ok := c.byCat[cat]
	if !ok || len(c.entries[i].Outputs) == 0 {
		return "", models.NewError(models.ErrNoFormatsAvailable, "", fmt.Sprintf("no output formats for %q", cat), nil)
	}
	e := c.entries[i]
	for _, r := range e.Recommended {
		if slices.Contains(e.Outputs, r) {
			return r, nil
		}
	}
	return e.Outputs[0], nil
}

// CategoryForExtension returns the first category, in catalog order, accepting ext as input.
func (c *Catalog) CategoryForExtension(ext string) (models.Category, bool) {
	ext = NormalizeExtension(ext)
	if ext == "" {
		return "", false
	}
	for _, e := range c.entries {
		if slices.Contains(e.Inputs, ext) {
			return e.Category, true
		}
	}
	return "", false
}

// IsSupportedInput reports whether any category accepts ext.
func (c *Catalog) IsSupportedInput(ext string) bool {
	_, ok := c.CategoryForExtension(ext)
	return ok
}
