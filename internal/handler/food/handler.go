package food

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nutrigraph/nutribot/backend/internal/model/food"
	foodService "github.com/nutrigraph/nutribot/backend/internal/service/food"
	"github.com/nutrigraph/nutribot/backend/pkg/utils"
)

// Handler food catalogue的HTTP处理器
type Handler struct {
	catalogue *foodService.Catalogue
}

// New 创建food处理器
func New(catalogue *foodService.Catalogue) *Handler {
	return &Handler{catalogue: catalogue}
}

// RegisterRoutes 注册/foods路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/foods", func(r chi.Router) {
		r.Get("/search", h.handleSearch)
		r.Get("/search/region/{region}", h.handleByRegion)
		r.Get("/search/cooking-method/{method}", h.handleByCookingMethod)
		r.Get("/search/spice/{level}", h.handleBySpiceLevel)
		r.Get("/autocomplete", h.handleAutocomplete)
		r.Get("/classes", h.handleList(h.catalogue.Classes))
		r.Get("/groups", h.handleList(h.catalogue.Groups))
		r.Get("/regions", h.handleList(h.catalogue.Regions))
		r.Get("/cooking-methods", h.handleList(h.catalogue.CookingMethods))
		r.Get("/spice-levels", h.handleList(h.catalogue.SpiceLevels))
		r.Get("/stats/cultural", h.handleCulturalStats)
		r.Get("/{foodID}", h.handleGet)
	})
}

// handleSearch 按关键词、分类和营养范围分页搜索；无法解析的数值参数被忽略
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := food.SearchRequest{
		Query:         q.Get("query"),
		FoodClass:     q.Get("foodClass"),
		FoodGroup:     q.Get("foodGroup"),
		MinCalories:   optionalFloat(q.Get("minCalories")),
		MaxCalories:   optionalFloat(q.Get("maxCalories")),
		MinProtein:    optionalFloat(q.Get("minProtein")),
		MaxProtein:    optionalFloat(q.Get("maxProtein")),
		Page:          intOr(q.Get("page"), 0),
		Size:          intOr(q.Get("size"), 0),
		SortBy:        q.Get("sortBy"),
		SortDirection: q.Get("sortDirection"),
	}
	utils.RespondJSON(w, http.StatusOK, h.catalogue.Search(req))
}

func (h *Handler) handleByRegion(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalogue.ByRegion(chi.URLParam(r, "region")))
}

func (h *Handler) handleByCookingMethod(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalogue.ByCookingMethod(chi.URLParam(r, "method")))
}

func (h *Handler) handleBySpiceLevel(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalogue.BySpiceLevel(chi.URLParam(r, "level")))
}

func (h *Handler) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalogue.Autocomplete(r.URL.Query().Get("query")))
}

func (h *Handler) handleList(list func() []string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, list())
	}
}

func (h *Handler) handleCulturalStats(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalogue.CulturalStats())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	f, err := h.catalogue.Get(chi.URLParam(r, "foodID"))
	if errors.Is(err, foodService.ErrFoodNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, f)
}

func optionalFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func intOr(raw string, fallback int) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
