// Package food holds the catalogue entry and search envelope types served
// under /api/foods.
package food

// Food is one catalogue entry. Nutrient values are per 100 g.
type Food struct {
	ID                   string   `json:"id" yaml:"id"`
	Name                 string   `json:"name" yaml:"name"`
	Description          string   `json:"description,omitempty" yaml:"description"`
	FoodClass            string   `json:"foodClass" yaml:"class"`
	ClassLabel           string   `json:"classLabel,omitempty" yaml:"class_label"`
	FoodGroup            string   `json:"foodGroup,omitempty" yaml:"group"`
	Region               string   `json:"region,omitempty" yaml:"region"`
	CookingMethod        string   `json:"cookingMethod,omitempty" yaml:"cooking_method"`
	SpiceLevel           string   `json:"spiceLevel,omitempty" yaml:"spice_level"`
	CulturalSignificance string   `json:"culturalSignificance,omitempty" yaml:"cultural_significance"`
	Calories             float64  `json:"calories" yaml:"calories"`
	Protein              float64  `json:"protein" yaml:"protein"`
	Carbohydrates        float64  `json:"carbohydrates" yaml:"carbohydrates"`
	Fat                  float64  `json:"fat" yaml:"fat"`
	Fiber                float64  `json:"fiber" yaml:"fiber"`
	Ingredients          []string `json:"ingredients,omitempty" yaml:"ingredients"`
}

// SearchRequest filters and pages the catalogue. Nil bounds are open.
type SearchRequest struct {
	Query         string
	FoodClass     string
	FoodGroup     string
	MinCalories   *float64
	MaxCalories   *float64
	MinProtein    *float64
	MaxProtein    *float64
	Page          int
	Size          int
	SortBy        string
	SortDirection string
}

// SearchResponse is one page of results.
type SearchResponse struct {
	Foods         []Food `json:"foods"`
	TotalElements int    `json:"totalElements"`
	CurrentPage   int    `json:"currentPage"`
	Size          int    `json:"size"`
	TotalPages    int    `json:"totalPages"`
	HasNext       bool   `json:"hasNext"`
	HasPrevious   bool   `json:"hasPrevious"`
}

// CulturalStats summarises the catalogue by region.
type CulturalStats struct {
	Regions       []string       `json:"regions"`
	TotalRegions  int            `json:"totalRegions"`
	FoodsByRegion map[string]int `json:"foodsByRegion"`
}
