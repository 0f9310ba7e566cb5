package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
)

// ProductRequest is the body of create and update calls.
type ProductRequest struct {
	ProductName       string          `json:"product_name" binding:"required"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

// StockRequest adjusts a product's stock by Delta.
type StockRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	ProductName string `json:"product_name"`
}

// Handler exposes the catalog over HTTP.
type Handler struct {
	useCase *UseCase
}

func NewHandler(useCase *UseCase) *Handler {
	return &Handler{useCase: useCase}
}

// Register mounts the product routes on group.
func (h *Handler) Register(group *gin.RouterGroup) {
	group.GET("/products", h.ListProducts)
	group.GET("/products/suggest", h.SuggestProducts)
	group.POST("/products", h.CreateProduct)
	group.GET("/products/:id", h.GetProduct)
	group.PUT("/products/:id", h.UpdateProduct)
	group.POST("/products/:id/deactivate", h.DeactivateProduct)
	group.POST("/products/:id/activate", h.ActivateProduct)
	group.POST("/products/:id/stock", h.AdjustStock)
}

// ListProducts lists every product, or searches when search_query is set.
// Search includes inactive products unless include_inactive=false.
func (h *Handler) ListProducts(c *gin.Context) {
	query := c.Query("search_query")

	var (
		products []Product
		err      error
	)
	if query == "" {
		products, err = h.useCase.List(c.Request.Context())
	} else {
		includeInactive := c.DefaultQuery("include_inactive", "true") != "false"
		products, err = h.useCase.GetByNameLike(c.Request.Context(), query, includeInactive)
	}
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

func (h *Handler) SuggestProducts(c *gin.Context) {
	names, err := h.useCase.Suggest(c.Request.Context(), c.Query("query"))
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	suggestions := make([]Suggestion, 0, len(names))
	for _, name := range names {
		suggestions = append(suggestions, Suggestion{ProductName: name})
	}
	c.JSON(http.StatusOK, suggestions)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, err.Error())
		return
	}

	product, err := h.useCase.Create(c.Request.Context(), req.ProductName, req.QuantityAvailable, req.UnitPrice)
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.useCase.GetByID(c.Request.Context(), id)
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, err.Error())
		return
	}

	product, err := h.useCase.Update(c.Request.Context(), id, req.ProductName, req.QuantityAvailable, req.UnitPrice)
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) DeactivateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.useCase.Deactivate(c.Request.Context(), id); err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "success", "product_id": id, "is_active": false})
}

func (h *Handler) ActivateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.useCase.Activate(c.Request.Context(), id); err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "success", "product_id": id, "is_active": true})
}

func (h *Handler) AdjustStock(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req StockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, err.Error())
		return
	}

	if err := h.useCase.UpdateQuantity(c.Request.Context(), id, req.Delta); err != nil {
		apperrors.Write(c, err)
		return
	}

	product, err := h.useCase.GetByID(c.Request.Context(), id)
	if err != nil {
		apperrors.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// parseID reads the :id path parameter, answering 400 when it is not a positive integer.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apperrors.BadRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
