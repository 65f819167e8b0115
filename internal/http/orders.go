package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
	"github.com/Eddy0415/PharmaMap-sub000/internal/service"
)

type orderLineReq struct {
	ItemID   uuid.UUID `json:"itemId" binding:"required"`
	Quantity int       `json:"quantity"`
}

type createOrderReq struct {
	CustomerID uuid.UUID      `json:"customerId" binding:"required"`
	PharmacyID uuid.UUID      `json:"pharmacyId" binding:"required"`
	Items      []orderLineReq `json:"items" binding:"required,min=1,dive"`
	Notes      string         `json:"notes" binding:"max=1000"`
}

// @Summary Create order
// @Tags orders
// @Accept json
// @Produce json
// @Param input body createOrderReq true "Order"
// @Success 201 {object} domain.Order
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in := service.CreateOrderInput{
		CustomerID: req.CustomerID,
		PharmacyID: req.PharmacyID,
		Notes:      req.Notes,
		Items:      make([]service.OrderLineInput, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.OrderLineInput{ItemID: it.ItemID, Quantity: it.Quantity})
	}
	o, err := s.orders.CreateOrder(c, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} errorResponse
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	o, err := s.orders.GetOrder(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type listOrdersReq struct {
	CustomerID string `form:"customerId" binding:"omitempty,uuid"`
	PharmacyID string `form:"pharmacyId" binding:"omitempty,uuid"`
	Status     string `form:"status"`
}

func (s *Server) listOrders(c *gin.Context) {
	var req listOrdersReq
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	f := repository.OrderFilter{Status: domain.OrderStatus(req.Status)}
	if req.CustomerID != "" {
		id := uuid.MustParse(req.CustomerID)
		f.CustomerID = &id
	}
	if req.PharmacyID != "" {
		id := uuid.MustParse(req.PharmacyID)
		f.PharmacyID = &id
	}
	list, err := s.orders.ListOrders(c, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type setStatusReq struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

// @Summary Change order status
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body setStatusReq true "Target status"
// @Success 200 {object} domain.Order
// @Failure 409 {object} errorResponse
// @Router /orders/{id}/status [patch]
func (s *Server) setOrderStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	o, err := s.orders.SetStatus(c, id, domain.OrderStatus(req.Status), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type cancelReq struct {
	Reason string `json:"reason" binding:"max=500"`
}

// @Summary Cancel order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /orders/{id}/cancel [post]
func (s *Server) cancelOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	// the body is optional
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}
	o, err := s.orders.CancelOrder(c, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
