package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Eddy0415/PharmaMap-sub000/internal/service"
)

type searchReq struct {
	Query    string `form:"q" binding:"max=200"`
	Category string `form:"category"`
	City     string `form:"city"`
	SortBy   string `form:"sortBy"`
	InStock  bool   `form:"inStock"`
}

// @Summary Search item availability across pharmacies
// @Tags search
// @Produce json
// @Param q query string false "Item name contains"
// @Param category query string false "Category"
// @Param city query string false "Pharmacy city"
// @Param sortBy query string false "distance | price-low | price-high | availability"
// @Param inStock query bool false "Only entries with stock"
// @Success 200 {object} service.SearchResult
// @Failure 400 {object} errorResponse
// @Router /search [get]
func (s *Server) searchAvailability(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := s.search.Search(c, service.SearchQuery{
		Query:       req.Query,
		Category:    req.Category,
		City:        req.City,
		SortBy:      service.SortOrder(req.SortBy),
		InStockOnly: req.InStock,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
