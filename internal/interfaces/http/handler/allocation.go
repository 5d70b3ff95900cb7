package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/propbill/backend/internal/application/allocation"
	"github.com/propbill/backend/internal/interfaces/http/dto"
)

// AllocationHandler drives the allocation workflow for one bill: draft,
// recalculate and commit
type AllocationHandler struct {
	BaseHandler
	service *allocation.Service
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(service *allocation.Service) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// GetDraft godoc
//
//	@Summary		Start an allocation draft
//	@Description	Returns one row per tenant of the bill's property. A sole tenant absorbs the whole bill; several tenants start at 0%.
//	@Tags			allocations
//	@ID				getAllocationDraft
//	@Produce		json
//	@Param			id	path		string	true	"Bill ID"
//	@Success		200	{object}	Envelope[dto.DraftResponse]
//	@Failure		404	{object}	Failure
//	@Failure		422	{object}	Failure
//	@Router			/bills/{id}/allocation-draft [get]
func (h *AllocationHandler) GetDraft(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	draft, err := h.service.Draft(c.Request.Context(), req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToDraftResponse(draft))
}

// Recalculate godoc
//
//	@Summary		Apply edits to an allocation draft
//	@Description	Applies the edits in order and returns the rows with their balance. Nothing is persisted.
//	@Tags			allocations
//	@ID				recalculateAllocationDraft
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Bill ID"
//	@Param			request	body		dto.RecalculateRequest	true	"Rows and edits"
//	@Success		200		{object}	Envelope[dto.DraftResponse]
//	@Failure		400		{object}	Failure
//	@Failure		404		{object}	Failure
//	@Router			/bills/{id}/allocation-draft/recalculate [post]
func (h *AllocationHandler) Recalculate(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var req dto.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	draft, err := h.service.Recalculate(c.Request.Context(), uri.ID, dto.ToRows(req.Rows), dto.ToEdits(req.Edits))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToDraftResponse(draft))
}

// Commit godoc
//
//	@Summary		Commit allocations for a bill
//	@Description	Writes one allocation per row with a positive amount, in row order, then marks the bill allocated.
//	@Description	A write failure stops the commit without rollback; the response data reports how many allocations were written.
//	@Description	Rows are recalculated server-side from the stored tenants. Retrying the same rows skips tenants already written.
//	@Tags			allocations
//	@ID				commitAllocations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Bill ID"
//	@Param			request	body		dto.CommitRequest	true	"Rows to persist"
//	@Success		201		{object}	Envelope[dto.CommitResponse]
//	@Failure		400		{object}	Failure
//	@Failure		404		{object}	Failure
//	@Failure		409		{object}	Failure
//	@Failure		422		{object}	Failure
//	@Failure		500		{object}	Envelope[dto.CommitResponse]
//	@Router			/bills/{id}/allocations [post]
func (h *AllocationHandler) Commit(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.ValidationError(c, err)
		return
	}
	var req dto.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.service.Commit(c.Request.Context(), uri.ID, dto.ToRows(req.Rows))
	if err != nil {
		h.HandlePartialError(c, err, dto.ToCommitResponse(result))
		return
	}
	h.Created(c, dto.ToCommitResponse(result))
}

// RegisterRoutes registers the allocation workflow routes
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bills := rg.Group("/bills")
	bills.GET("/:id/allocation-draft", h.GetDraft)
	bills.POST("/:id/allocation-draft/recalculate", h.Recalculate)
	bills.POST("/:id/allocations", h.Commit)
}
