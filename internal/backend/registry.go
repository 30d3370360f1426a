package backend

import (
	"fmt"
	"sort"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
)

// DefaultChains returns the built-in strategy order per category.
func DefaultChains() map[models.Category][]string {
	return map[models.Category][]string{
		models.CategoryImage:    {constants.StrategyImage, constants.StrategyFFmpeg},
		models.CategoryAudio:    {constants.StrategyFFmpeg, constants.StrategyWAV, constants.StrategyByteCopy},
		models.CategoryVideo:    {constants.StrategyFFmpegVulkan, constants.StrategyFFmpeg},
		models.CategoryDocument: {constants.StrategyDocument, constants.StrategyOffice},
	}
}

// MergeChains overlays configured chains (keyed by category name) on DefaultChains.
func MergeChains(configured map[string][]string) (map[models.Category][]string, error) {
	chains := DefaultChains()
	for name, order := range configured {
		cat, err := models.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		chains[cat] = append([]string(nil), order...)
	}
	return chains, nil
}

// Registry maps each category to its chain. It is read-only after Build.
type Registry struct {
	chains map[models.Category]*Chain
}

// Build assembles a registry from strategy orders and the available strategies by name.
func Build(order map[models.Category][]string, available map[string]Strategy) (*Registry, error) {
	r := &Registry{chains: make(map[models.Category]*Chain, len(order))}
	for cat, names := range order {
		strategies := make([]Strategy, 0, len(names))
		for _, name := range names {
			s, ok := available[name]
			if !ok {
				return nil, fmt.Errorf("chain %s: unknown strategy %q", cat, name)
			}
			strategies = append(strategies, s)
		}
		r.chains[cat] = NewChain(cat, strategies...)
	}
	return r, nil
}

// Chain returns the chain for cat.
func (r *Registry) Chain(cat models.Category) (*Chain, bool) {
	c, ok := r.chains[cat]
	return c, ok
}

// Categories lists the categories that have a chain, sorted by name.
func (r *Registry) Categories() []models.Category {
	cats := make([]models.Category, 0, len(r.chains))
	for c := range r.chains {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}
