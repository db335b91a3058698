package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "ledgerly/internal/errors"
	"ledgerly/internal/models"
	"ledgerly/internal/pagination"
	"ledgerly/internal/services"
)

// RecurringHandler handles recurring transaction template requests.
type RecurringHandler struct {
	recurringService services.RecurringServicer
	auditService     services.AuditServicer
}

// NewRecurringHandler creates a new RecurringHandler.
func NewRecurringHandler(recurringService services.RecurringServicer, auditService services.AuditServicer) *RecurringHandler {
	return &RecurringHandler{recurringService: recurringService, auditService: auditService}
}

// CreateRecurringRequest represents the request payload for creating a recurring template.
type CreateRecurringRequest struct {
	AccountID   uint                      `json:"account_id" binding:"required"`
	CategoryID  *uint                     `json:"category_id"`
	Name        string                    `json:"name" binding:"required,min=1,max=100"`
	Type        models.EntryType          `json:"type" binding:"required,entry_type"`
	Amount      int64                     `json:"amount" binding:"required,gt=0"`
	Description string                    `json:"description" binding:"max=500"`
	Frequency   models.RecurringFrequency `json:"frequency" binding:"required,recurring_frequency"`
	Interval    int                       `json:"interval" binding:"omitempty,gte=1"`
	StartDate   time.Time                 `json:"start_date" binding:"required"`
	EndDate     *time.Time                `json:"end_date"`
}

// UpdateRecurringRequest represents the request payload for updating a recurring template.
// The account is fixed at creation.
type UpdateRecurringRequest struct {
	CategoryID  *int64                     `json:"category_id"`
	Name        *string                    `json:"name" binding:"omitempty,min=1,max=100"`
	Type        *models.EntryType          `json:"type" binding:"omitempty,entry_type"`
	Amount      *int64                     `json:"amount" binding:"omitempty,gt=0"`
	Description *string                    `json:"description" binding:"omitempty,max=500"`
	Frequency   *models.RecurringFrequency `json:"frequency" binding:"omitempty,recurring_frequency"`
	Interval    *int                       `json:"interval" binding:"omitempty,gte=1"`
	EndDate     *time.Time                 `json:"end_date"`
	IsActive    *bool                      `json:"is_active"`
}

// CreateRecurring handles the creation of a new recurring template.
// @Summary     Create a recurring transaction
// @Description Create a recurring transaction template. The first occurrence is due on the start date.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateRecurringRequest true "Recurring template details"
// @Success     201 {object} models.Recurring "Template created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring [post]
func (h *RecurringHandler) CreateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	recurring, err := h.recurringService.CreateRecurring(
		userID, req.AccountID, req.CategoryID, req.Name, req.Type,
		req.Amount, req.Description, req.Frequency, req.Interval,
		req.StartDate, req.EndDate,
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_RECURRING", "recurring", recurring.ID, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "frequency": req.Frequency, "amount": req.Amount})

	c.JSON(http.StatusCreated, gin.H{"recurring": recurring})
}

// GetUserRecurring handles listing recurring templates for the authenticated user.
// @Summary     Get recurring transactions
// @Description Get a paginated list of recurring transaction templates
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Recurring] "Paginated templates"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring [get]
func (h *RecurringHandler) GetUserRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.recurringService.GetUserRecurring(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecurringByID handles retrieving a specific recurring template.
// @Summary     Get recurring transaction by ID
// @Description Get a specific recurring transaction template by ID
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Recurring template ID"
// @Success     200 {object} models.Recurring "Template details"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [get]
func (h *RecurringHandler) GetRecurringByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurring, err := h.recurringService.GetRecurringByID(userID, recurringID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recurring": recurring})
}

// UpdateRecurring handles updating a recurring template.
// @Summary     Update recurring transaction
// @Description Update a recurring transaction template. The account cannot be changed.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int                    true "Recurring template ID"
// @Param       request body UpdateRecurringRequest true "Fields to update"
// @Success     200 {object} models.Recurring "Updated template"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [put]
func (h *RecurringHandler) UpdateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	updateFields := services.RecurringUpdateFields{
		Name:        req.Name,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Frequency:   req.Frequency,
		Interval:    req.Interval,
		EndDate:     req.EndDate,
		IsActive:    req.IsActive,
	}

	// Handle CategoryID: nil in JSON = don't change; negative/zero = clear; positive = set
	if req.CategoryID != nil {
		if *req.CategoryID <= 0 {
			var nilUint *uint
			updateFields.CategoryID = &nilUint
		} else {
			catID := uint(*req.CategoryID)
			catIDPtr := &catID
			updateFields.CategoryID = &catIDPtr
		}
	}

	recurring, err := h.recurringService.UpdateRecurring(userID, recurringID, updateFields)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_RECURRING", "recurring", recurringID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"recurring": recurring})
}

// DeleteRecurring handles deleting a recurring template.
// @Summary     Delete recurring transaction
// @Description Delete a recurring transaction template. Transactions already created from it are kept.
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Recurring template ID"
// @Success     200 {object} MessageResponse "Template deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [delete]
func (h *RecurringHandler) DeleteRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.recurringService.DeleteRecurring(userID, recurringID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_RECURRING", "recurring", recurringID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Recurring transaction deleted successfully"})
}

// RunDue materializes the authenticated user's due recurring transactions.
// @Summary     Run due recurring transactions
// @Description Materialize every due occurrence of the user's active templates up to now
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MessageResponse "Number of transactions created"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/run [post]
func (h *RecurringHandler) RunDue(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	created, err := h.recurringService.RunDue(userID, time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "RUN_RECURRING", "recurring", 0, c.ClientIP(),
		map[string]interface{}{"created": created})

	c.JSON(http.StatusOK, gin.H{"created": created})
}

// SweepDue materializes due recurring transactions for every user. It is
// mounted behind the job API key, not user authentication.
// @Summary     Sweep due recurring transactions
// @Description Materialize due occurrences across all users. Called by the scheduler.
// @Tags        jobs
// @Accept      json
// @Produce     json
// @Param       X-API-Key header string true "Job API key"
// @Success     200 {object} MessageResponse "Number of transactions created"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Job endpoints not configured"
// @Router      /jobs/recurring/sweep [post]
func (h *RecurringHandler) SweepDue(c *gin.Context) {
	created, err := h.recurringService.RunAllDue(time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created})
}
