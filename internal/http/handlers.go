package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
	"github.com/Eddy0415/PharmaMap-sub000/internal/service"
)

// HealthCheck проверка зависимости для /healthz
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	engine  *gin.Engine
	catalog *service.CatalogService
	ledger  *service.InventoryService
	orders  *service.OrderService
	search  *service.SearchService
	checks  []HealthCheck
}

func NewServer(
	catalog *service.CatalogService,
	ledger *service.InventoryService,
	orders *service.OrderService,
	search *service.SearchService,
	checks ...HealthCheck,
) *Server {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())
	s := &Server{engine: r, catalog: catalog, ledger: ledger, orders: orders, search: search, checks: checks}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.health)

	v1 := s.engine.Group("/api/v1")
	{
		inventory := v1.Group("/inventory")
		inventory.POST("", s.createEntry)
		inventory.GET(":id", s.getEntry)
		inventory.PATCH(":id", s.updateEntry)
		inventory.DELETE(":id", s.deleteEntry)

		pharmacies := v1.Group("/pharmacies")
		pharmacies.GET(":id", s.getPharmacy)
		pharmacies.GET(":id/inventory", s.pharmacyInventory)

		v1.GET("/items", s.listItems)
		v1.GET("/items/:id", s.getItem)

		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET("", s.listOrders)
		orders.GET(":id", s.getOrder)
		orders.PATCH(":id/status", s.setOrderStatus)
		orders.POST(":id/cancel", s.cancelOrder)

		v1.GET("/search", s.searchAvailability)
	}
}

// Inventory handlers
type createEntryReq struct {
	PharmacyID        uuid.UUID        `json:"pharmacyId" binding:"required"`
	ItemID            uuid.UUID        `json:"itemId" binding:"required"`
	Quantity          *int             `json:"quantity" binding:"required"`
	Price             *decimal.Decimal `json:"price" binding:"required"`
	LowStockThreshold *int             `json:"lowStockThreshold" binding:"omitempty,min=0"`
	IsAvailable       *bool            `json:"isAvailable"`
}

// @Summary Create inventory entry
// @Tags inventory
// @Accept json
// @Produce json
// @Param input body createEntryReq true "Entry"
// @Success 201 {object} domain.InventoryEntry
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /inventory [post]
func (s *Server) createEntry(c *gin.Context) {
	var req createEntryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	e, err := s.ledger.CreateEntry(c, service.CreateEntryInput{
		PharmacyID:        req.PharmacyID,
		ItemID:            req.ItemID,
		Quantity:          *req.Quantity,
		Price:             *req.Price,
		LowStockThreshold: req.LowStockThreshold,
		IsAvailable:       req.IsAvailable,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// @Summary Get inventory entry by id
// @Tags inventory
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} domain.InventoryEntry
// @Failure 404 {object} errorResponse
// @Router /inventory/{id} [get]
func (s *Server) getEntry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, err := s.ledger.GetEntry(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type updateEntryReq struct {
	Quantity          *int             `json:"quantity"`
	Price             *decimal.Decimal `json:"price"`
	LowStockThreshold *int             `json:"lowStockThreshold" binding:"omitempty,min=0"`
	IsAvailable       *bool            `json:"isAvailable"`
}

// @Summary Update inventory entry
// @Tags inventory
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param input body updateEntryReq true "Changed fields"
// @Success 200 {object} domain.InventoryEntry
// @Router /inventory/{id} [patch]
func (s *Server) updateEntry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateEntryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	e, err := s.ledger.AdjustEntry(c, id, service.EntryPatch{
		Quantity:          req.Quantity,
		Price:             req.Price,
		LowStockThreshold: req.LowStockThreshold,
		IsAvailable:       req.IsAvailable,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) deleteEntry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.ledger.RemoveEntry(c, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Catalog handlers

func (s *Server) getPharmacy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, err := s.catalog.GetPharmacy(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Pharmacy inventory
// @Tags pharmacies
// @Produce json
// @Param id path string true "Pharmacy ID"
// @Param lowStock query bool false "Only low-stock and out-of-stock entries"
// @Success 200 {array} domain.InventoryEntry
// @Router /pharmacies/{id}/inventory [get]
func (s *Server) pharmacyInventory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	lowStock := false
	if v := c.Query("lowStock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid lowStock flag"})
			return
		}
		lowStock = b
	}
	list, err := s.ledger.ListPharmacyInventory(c, id, lowStock)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	it, err := s.catalog.GetItem(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

type listItemsReq struct {
	Query    string `form:"q" binding:"max=200"`
	Category string `form:"category"`
}

func (s *Server) listItems(c *gin.Context) {
	var req listItemsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	list, err := s.catalog.ListItems(c, repository.ItemFilter{
		NameSubstring: strings.TrimSpace(req.Query),
		Category:      strings.TrimSpace(req.Category),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, hc := range s.checks {
		if err := hc.Check(ctx); err != nil {
			failed[hc.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID writes a 400 response and returns false when :id is not a UUID.
func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
