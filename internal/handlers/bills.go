package handlers

import (
	"net/http"
	"strconv"

	"billing-api/internal/models"
	"billing-api/internal/services"
	apperrors "billing-api/pkg/errors"

	"github.com/gin-gonic/gin"
)

type BillHandler struct {
	bills *services.BillService
}

func NewBillHandler(bills *services.BillService) *BillHandler {
	return &BillHandler{bills: bills}
}

type lineItemRequest struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Compliant   bool   `json:"compliant"`
}

type createBillRequest struct {
	FileURL   string            `json:"file_url" binding:"required"`
	LineItems []lineItemRequest `json:"line_items"`
}

// CreateBill handles POST /bills
func (h *BillHandler) CreateBill() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")

		var req createBillRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "file_url is required",
			})
			return
		}

		items := make([]models.LineItem, len(req.LineItems))
		for i, item := range req.LineItems {
			items[i] = models.LineItem{
				Description: item.Description,
				Amount:      item.Amount,
				Compliant:   item.Compliant,
			}
		}

		bill, err := h.bills.Submit(c.Request.Context(), userID, req.FileURL, items)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, bill)
	}
}

// ListBills handles GET /bills
func (h *BillHandler) ListBills() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		status := c.Query("status")

		bills, err := h.bills.List(c.Request.Context(), userID, status, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, bills)
	}
}

// GetBill handles GET /bills/:id
func (h *BillHandler) GetBill() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid bill id",
			})
			return
		}

		bill, err := h.bills.Get(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, bill)
	}
}

// ReprocessBill handles POST /bills/:id/reprocess
func (h *BillHandler) ReprocessBill() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid bill id",
			})
			return
		}

		bill, err := h.bills.Reprocess(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, bill)
	}
}

// respondError maps an AppError to its HTTP shape, anything else to a 500
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		c.JSON(appErr.Status, apperrors.ErrorResponse{
			Error:   appErr.Code,
			Message: appErr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, apperrors.ErrorResponse{
		Error:   apperrors.ErrInternalServer.Code,
		Message: apperrors.ErrInternalServer.Message,
	})
}
