package models

import (
	"fmt"
	"strings"

	"github.com/Qwejay/Qconverto/constants"
)

// Category is the coarse media classification that selects a format catalog entry and a backend chain.
type Category string

// Supported categories.
const (
	CategoryImage    Category = constants.CategoryImage
	CategoryAudio    Category = constants.CategoryAudio
	CategoryVideo    Category = constants.CategoryVideo
	CategoryDocument Category = constants.CategoryDocument
)

// Categories lists every category in catalog order.
var Categories = []Category{CategoryImage, CategoryAudio, CategoryVideo, CategoryDocument}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the supported categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryImage, CategoryAudio, CategoryVideo, CategoryDocument:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// Confidence records which signal decided a classification.
type Confidence string

// Classification confidence levels.
const (
	ConfidenceSignatureConfirmed Confidence = constants.ConfidenceSignatureConfirmed
	ConfidenceExtensionOnly      Confidence = constants.ConfidenceExtensionOnly
)

// ClassificationResult is computed once per input file and never mutated afterwards.
type ClassificationResult struct {
	Path             string     `json:"path"`
	Category         Category   `json:"category"`
	DetectedFormat   string     `json:"detected_format"`
	Confidence       Confidence `json:"confidence"`
	MatchedExtension string     `json:"matched_extension"`
}

// Classified reports whether a category was resolved.
func (r *ClassificationResult) Classified() bool {
	return r != nil && r.Category != ""
}
