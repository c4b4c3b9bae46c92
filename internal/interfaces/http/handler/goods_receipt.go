package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/application/receiving"
	"github.com/pharmaerp/receiving/internal/interfaces/http/router"
)

// GoodsReceiptService is what the handler needs from the application layer
type GoodsReceiptService interface {
	Create(ctx context.Context, input receiving.CreateGoodsReceiptInput) (*receiving.GoodsReceiptResponse, error)
	Transition(ctx context.Context, input receiving.TransitionGoodsReceiptInput) (*receiving.GoodsReceiptSummary, error)
	GetByID(ctx context.Context, id uuid.UUID) (*receiving.GoodsReceiptResponse, error)
	List(ctx context.Context, input receiving.ListGoodsReceiptsInput) (*receiving.ListGoodsReceiptsResult, error)
	Delete(ctx context.Context, id uuid.UUID) (*receiving.DeleteGoodsReceiptResult, error)
}

// GoodsReceiptHandler handles goods receipt API endpoints
type GoodsReceiptHandler struct {
	BaseHandler
	service GoodsReceiptService
}

// NewGoodsReceiptHandler creates a new GoodsReceiptHandler
func NewGoodsReceiptHandler(service GoodsReceiptService) *GoodsReceiptHandler {
	return &GoodsReceiptHandler{service: service}
}

// TransitionRequest is the body of POST /goods-receipts/:id/transition
type TransitionRequest struct {
	Status string `json:"status" binding:"required" example:"Pending QC"`
}

// Routes returns the goods receipt route group
func (h *GoodsReceiptHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("goods-receipts", "/goods-receipts").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.GetByID).
		POST("/:id/transition", h.Transition).
		DELETE("/:id", h.Delete)
}

// Create godoc
// @Summary      Create goods receipt
// @Description  Records a delivery against a purchase order as a Draft receipt
// @Tags         goods-receipts
// @Accept       json
// @Produce      json
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Router       /goods-receipts [post]
func (h *GoodsReceiptHandler) Create(c *gin.Context) {
	var req receiving.CreateGoodsReceiptInput
	if !h.BindJSON(c, &req) {
		return
	}

	receipt, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, receipt)
}

// GetByID godoc
// @Summary      Get goods receipt
// @Tags         goods-receipts
// @Produce      json
// @Param        id path string true "Goods receipt ID"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /goods-receipts/{id} [get]
func (h *GoodsReceiptHandler) GetByID(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	receipt, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, receipt)
}

// List godoc
// @Summary      List goods receipts
// @Tags         goods-receipts
// @Produce      json
// @Param        search            query string false "Search term"
// @Param        status            query string false "Status, e.g. Pending QC"
// @Param        purchase_order_id query string false "Purchase order ID"
// @Param        received_from     query string false "Received on or after (YYYY-MM-DD)"
// @Param        received_to       query string false "Received on or before (YYYY-MM-DD)"
// @Param        sort_by           query string false "Sort field" Enums(grn_number, received_date, status, created_at, updated_at)
// @Param        sort_order        query string false "Sort direction" Enums(asc, desc)
// @Param        page              query int    false "Page number" default(1)
// @Param        limit             query int    false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Router       /goods-receipts [get]
func (h *GoodsReceiptHandler) List(c *gin.Context) {
	var query receiving.ListGoodsReceiptsInput
	if !h.BindQuery(c, &query) {
		return
	}

	result, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Transition godoc
// @Summary      Move a goods receipt through its lifecycle
// @Tags         goods-receipts
// @Accept       json
// @Produce      json
// @Param        id   path string            true "Goods receipt ID"
// @Param        body body TransitionRequest true "Target status"
// @Success      200 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /goods-receipts/{id}/transition [post]
func (h *GoodsReceiptHandler) Transition(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	summary, err := h.service.Transition(c.Request.Context(), receiving.TransitionGoodsReceiptInput{
		ID:     id,
		Status: req.Status,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// Delete godoc
// @Summary      Delete a Draft goods receipt
// @Tags         goods-receipts
// @Produce      json
// @Param        id path string true "Goods receipt ID"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /goods-receipts/{id} [delete]
func (h *GoodsReceiptHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
