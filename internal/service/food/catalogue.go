// Package food serves the read-only food catalogue the chat fallbacks point
// users to.
package food

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nutrigraph/nutribot/backend/internal/model/food"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	autocompleteSize = 10
)

var ErrFoodNotFound = errors.New("food not found")

//go:embed catalogue.yaml
var builtin []byte

// Catalogue is an immutable in-memory food index.
type Catalogue struct {
	foods []food.Food
	byID  map[string]int
}

type catalogueFile struct {
	Foods []food.Food `yaml:"foods"`
}

// Builtin loads the catalogue compiled into the binary.
func Builtin() (*Catalogue, error) {
	return Load(builtin)
}

// Load parses a YAML catalogue. Entries need a unique id and a name.
func Load(data []byte) (*Catalogue, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse food catalogue: %w", err)
	}

	c := &Catalogue{byID: make(map[string]int, len(file.Foods))}
	for _, f := range file.Foods {
		if f.ID == "" || f.Name == "" {
			return nil, fmt.Errorf("food catalogue entry %d: id and name are required", len(c.foods))
		}
		if _, dup := c.byID[f.ID]; dup {
			return nil, fmt.Errorf("food catalogue: duplicate id %q", f.ID)
		}
		c.byID[f.ID] = len(c.foods)
		c.foods = append(c.foods, f)
	}
	sort.SliceStable(c.foods, func(i, j int) bool { return c.foods[i].Name < c.foods[j].Name })
	for i, f := range c.foods {
		c.byID[f.ID] = i
	}
	return c, nil
}

// Len returns the number of entries.
func (c *Catalogue) Len() int {
	return len(c.foods)
}

// Get returns one entry by id.
func (c *Catalogue) Get(id string) (food.Food, error) {
	i, ok := c.byID[id]
	if !ok {
		return food.Food{}, ErrFoodNotFound
	}
	return c.foods[i], nil
}

// Search filters, sorts and pages the catalogue. Query matches name,
// description and ingredients case-insensitively.
func (c *Catalogue) Search(req food.SearchRequest) food.SearchResponse {
	query := strings.ToLower(strings.TrimSpace(req.Query))
	matched := make([]food.Food, 0, len(c.foods))
	for _, f := range c.foods {
		if query != "" && !matchesQuery(f, query) {
			continue
		}
		if req.FoodClass != "" && !strings.EqualFold(f.FoodClass, req.FoodClass) {
			continue
		}
		if req.FoodGroup != "" && !strings.EqualFold(f.FoodGroup, req.FoodGroup) {
			continue
		}
		if !inRange(f.Calories, req.MinCalories, req.MaxCalories) || !inRange(f.Protein, req.MinProtein, req.MaxProtein) {
			continue
		}
		matched = append(matched, f)
	}

	sortFoods(matched, req.SortBy, strings.EqualFold(req.SortDirection, "desc"))

	size := req.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page := max(req.Page, 0)

	total := len(matched)
	totalPages := (total + size - 1) / size
	start := min(page*size, total)
	end := min(start+size, total)

	return food.SearchResponse{
		Foods:         matched[start:end],
		TotalElements: total,
		CurrentPage:   page,
		Size:          size,
		TotalPages:    totalPages,
		HasNext:       page+1 < totalPages,
		HasPrevious:   page > 0 && total > 0,
	}
}

// Autocomplete returns up to ten names starting with prefix, matching at any
// word boundary.
func (c *Catalogue) Autocomplete(prefix string) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	out := []string{}
	if prefix == "" {
		return out
	}
	for _, f := range c.foods {
		if len(out) == autocompleteSize {
			break
		}
		name := strings.ToLower(f.Name)
		if strings.HasPrefix(name, prefix) {
			out = append(out, f.Name)
			continue
		}
		for _, word := range strings.Fields(name) {
			if strings.HasPrefix(word, prefix) {
				out = append(out, f.Name)
				break
			}
		}
	}
	return out
}

// Classes lists the distinct food classes.
func (c *Catalogue) Classes() []string {
	return c.distinct(func(f food.Food) string { return f.FoodClass })
}

func (c *Catalogue) Groups() []string {
	return c.distinct(func(f food.Food) string { return f.FoodGroup })
}

func (c *Catalogue) Regions() []string {
	return c.distinct(func(f food.Food) string { return f.Region })
}

func (c *Catalogue) CookingMethods() []string {
	return c.distinct(func(f food.Food) string { return f.CookingMethod })
}

func (c *Catalogue) SpiceLevels() []string {
	return c.distinct(func(f food.Food) string { return f.SpiceLevel })
}

// ByRegion lists entries of one region, ordered by name.
func (c *Catalogue) ByRegion(region string) []food.Food {
	return c.where(func(f food.Food) bool { return strings.EqualFold(f.Region, region) })
}

// ByCookingMethod lists entries prepared with method, ordered by name.
func (c *Catalogue) ByCookingMethod(method string) []food.Food {
	return c.where(func(f food.Food) bool { return strings.EqualFold(f.CookingMethod, method) })
}

// BySpiceLevel lists entries at one spice level, ordered by name.
func (c *Catalogue) BySpiceLevel(level string) []food.Food {
	return c.where(func(f food.Food) bool { return strings.EqualFold(f.SpiceLevel, level) })
}

// CulturalStats counts entries per region.
func (c *Catalogue) CulturalStats() food.CulturalStats {
	regions := c.Regions()
	counts := make(map[string]int, len(regions))
	for _, f := range c.foods {
		if f.Region != "" {
			counts[f.Region]++
		}
	}
	return food.CulturalStats{Regions: regions, TotalRegions: len(regions), FoodsByRegion: counts}
}

func (c *Catalogue) where(keep func(food.Food) bool) []food.Food {
	out := []food.Food{}
	for _, f := range c.foods {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

func (c *Catalogue) distinct(field func(food.Food) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, f := range c.foods {
		v := field(f)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func matchesQuery(f food.Food, query string) bool {
	if strings.Contains(strings.ToLower(f.Name), query) || strings.Contains(strings.ToLower(f.Description), query) {
		return true
	}
	for _, ing := range f.Ingredients {
		if strings.Contains(strings.ToLower(ing), query) {
			return true
		}
	}
	return false
}

func inRange(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func sortFoods(foods []food.Food, by string, desc bool) {
	less := func(a, b food.Food) bool { return a.Name < b.Name }
	switch strings.ToLower(by) {
	case "calories":
		less = func(a, b food.Food) bool { return a.Calories < b.Calories }
	case "protein":
		less = func(a, b food.Food) bool { return a.Protein < b.Protein }
	}
	sort.SliceStable(foods, func(i, j int) bool {
		if desc {
			return less(foods[j], foods[i])
		}
		return less(foods[i], foods[j])
	})
}
