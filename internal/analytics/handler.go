package analytics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler exposes the dashboard API: overview aggregates plus paginated
// visitor and page-view listings.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes mounts the dashboard API under /<pathname>/api.
func (h *Handler) RegisterRoutes(router *gin.Engine, pathname string) {
	api := router.Group("/" + strings.Trim(pathname, "/") + "/api")
	api.GET("/overview", h.GetOverview)
	api.GET("/visitors", h.GetVisitors)
	api.GET("/page-views", h.GetPageViews)
}

func (h *Handler) GetOverview(c *gin.Context) {
	var params RangeParams
	if !h.bindRangeParams(c, &params) {
		return
	}

	overview, err := h.service.Overview(c.Request.Context(), params)
	if err != nil {
		h.respondQueryError(c, "overview", err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

func (h *Handler) GetVisitors(c *gin.Context) {
	var params RangeParams
	if !h.bindRangeParams(c, &params) {
		return
	}

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", defaultPerPage)

	visitors, err := h.service.Visitors(c.Request.Context(), params, page, perPage)
	if err != nil {
		h.respondQueryError(c, "visitors", err)
		return
	}

	c.JSON(http.StatusOK, visitors)
}

func (h *Handler) GetPageViews(c *gin.Context) {
	var params RangeParams
	if !h.bindRangeParams(c, &params) {
		return
	}

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", defaultPerPage)
	pathFilter := c.Query("path")

	pageViews, err := h.service.PageViews(c.Request.Context(), params, pathFilter, page, perPage)
	if err != nil {
		h.respondQueryError(c, "page views", err)
		return
	}

	c.JSON(http.StatusOK, pageViews)
}

// bindRangeParams validates the query string and writes a field-level 400
// on failure. Returns false when the request was already answered.
func (h *Handler) bindRangeParams(c *gin.Context, params *RangeParams) bool {
	if err := c.ShouldBindQuery(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid query parameters",
			"fields": fieldErrors(err),
		})
		return false
	}
	return true
}

func (h *Handler) respondQueryError(c *gin.Context, operation string, err error) {
	if errors.Is(err, ErrEndBeforeStart) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid query parameters",
			"fields": gin.H{"end_date": ErrEndBeforeStart.Error()},
		})
		return
	}

	h.logger.Error("Dashboard query failed",
		zap.String("operation", operation),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute " + operation})
}

func fieldErrors(err error) gin.H {
	fields := gin.H{}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fe := range validationErrs {
			switch fe.Tag() {
			case "datetime":
				fields[fieldName(fe)] = "must be a date in YYYY-MM-DD format"
			case "min", "max":
				fields[fieldName(fe)] = "must be between 1 and 365"
			case "oneof":
				fields[fieldName(fe)] = "must be one of: web, api"
			default:
				fields[fieldName(fe)] = "is invalid"
			}
		}
		return fields
	}

	fields["query"] = err.Error()
	return fields
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "StartDate":
		return "start_date"
	case "EndDate":
		return "end_date"
	case "DateRange":
		return "date_range"
	case "Category":
		return "category"
	default:
		return strings.ToLower(fe.Field())
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
