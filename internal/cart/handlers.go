package cart

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
)

// AddItemRequest is the body of POST /cart/items.
type AddItemRequest struct {
	ProductSearchTerm string          `json:"product_search_term" binding:"required"`
	Quantity          decimal.Decimal `json:"quantity"`
}

// Response is a cart with its running total.
type Response struct {
	Cart
	Total decimal.Decimal `json:"total"`
}

func NewResponse(c Cart) Response {
	return Response{Cart: c, Total: c.Total()}
}

type Handler struct {
	service *Service
	store   Store
}

func NewHandler(service *Service, store Store) *Handler {
	return &Handler{
		service: service,
		store:   store,
	}
}

// Register mounts the cart routes on group. SessionMiddleware must run first.
func (h *Handler) Register(group *gin.RouterGroup) {
	group.GET("/cart", h.GetCart)
	group.POST("/cart/items", h.AddItem)
	group.DELETE("/cart/items/:index", h.RemoveItem)
}

func (h *Handler) GetCart(c *gin.Context) {
	current, err := h.store.Load(c.Request.Context(), SessionID(c))
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(current))
}

func (h *Handler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	current, err := h.store.Load(ctx, SessionID(c))
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	next, err := h.service.AddItem(ctx, current, req.ProductSearchTerm, req.Quantity)
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	if err := h.store.Save(ctx, next); err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(next))
}

// RemoveItem answers 200 with removed=false for an index outside the cart.
func (h *Handler) RemoveItem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		apperrors.BadRequest(c, "index must be an integer")
		return
	}

	ctx := c.Request.Context()
	current, err := h.store.Load(ctx, SessionID(c))
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	next := current.Remove(index)
	removed := len(next.Items) != len(current.Items)
	if removed {
		if err := h.store.Save(ctx, next); err != nil {
			apperrors.Write(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed, "cart": NewResponse(next)})
}
