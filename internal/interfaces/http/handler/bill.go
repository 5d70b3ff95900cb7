package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/propbill/backend/internal/application/allocation"
	"github.com/propbill/backend/internal/interfaces/http/dto"
)

// BillHandler handles bill reads and exception flagging
type BillHandler struct {
	BaseHandler
	service *allocation.Service
}

// NewBillHandler creates a new BillHandler
func NewBillHandler(service *allocation.Service) *BillHandler {
	return &BillHandler{service: service}
}

// GetBill godoc
//
//	@Summary		Get a bill
//	@Tags			bills
//	@ID				getBill
//	@Produce		json
//	@Param			id	path		string	true	"Bill ID"
//	@Success		200	{object}	Envelope[dto.BillResponse]
//	@Failure		404	{object}	Failure
//	@Router			/bills/{id} [get]
func (h *BillHandler) GetBill(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	bill, err := h.service.GetBill(c.Request.Context(), req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToBillResponse(bill))
}

// ListAllocations godoc
//
//	@Summary		List the allocations written for a bill
//	@Tags			bills
//	@ID				listBillAllocations
//	@Produce		json
//	@Param			id	path		string	true	"Bill ID"
//	@Success		200	{object}	Envelope[[]dto.AllocationResponse]
//	@Failure		404	{object}	Failure
//	@Router			/bills/{id}/allocations [get]
func (h *BillHandler) ListAllocations(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	allocs, err := h.service.ListAllocations(c.Request.Context(), req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAllocationResponses(allocs))
}

// FlagException godoc
//
//	@Summary		Flag a bill for manual review
//	@Description	Moves any bill that is not yet allocated to the exception queue
//	@Tags			bills
//	@ID				flagBillException
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Bill ID"
//	@Param			request	body		dto.FlagExceptionRequest	true	"Reason"
//	@Success		200		{object}	Envelope[dto.BillResponse]
//	@Failure		400		{object}	Failure
//	@Failure		404		{object}	Failure
//	@Failure		409		{object}	Failure
//	@Failure		422		{object}	Failure
//	@Router			/bills/{id}/exception [post]
func (h *BillHandler) FlagException(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var req dto.FlagExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	bill, err := h.service.FlagException(c.Request.Context(), uri.ID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToBillResponse(bill))
}

// RegisterRoutes registers the bill routes
func (h *BillHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bills := rg.Group("/bills")
	bills.GET("/:id", h.GetBill)
	bills.GET("/:id/allocations", h.ListAllocations)
	bills.POST("/:id/exception", h.FlagException)
}
