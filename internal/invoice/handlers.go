package invoice

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
	"github.com/matheusmosca/retail-pos/internal/cart"
)

const dateLayout = "2006-01-02"

// CheckoutRequest is the body of POST /cart/checkout.
type CheckoutRequest struct {
	CustomerName string `json:"customer_name" binding:"required"`
}

// CheckoutResponse carries the new invoice id and the (now empty) cart.
type CheckoutResponse struct {
	InvoiceID int64         `json:"invoice_id"`
	Cart      cart.Response `json:"cart"`
}

type Handler struct {
	useCase *UseCase
	carts   cart.Store
}

func NewHandler(useCase *UseCase, carts cart.Store) *Handler {
	return &Handler{
		useCase: useCase,
		carts:   carts,
	}
}

// Register mounts checkout and the invoice read routes on group.
func (h *Handler) Register(group *gin.RouterGroup) {
	group.POST("/cart/checkout", h.Checkout)
	group.GET("/invoices", h.ListInvoices)
	group.GET("/invoices/:id", h.GetInvoice)
}

// Checkout converts the session cart into an invoice. The cart is cleared
// only after the invoice is committed; on failure it is left untouched.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	current, err := h.carts.Load(ctx, cart.SessionID(c))
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	invoiceID, err := h.useCase.Checkout(ctx, req.CustomerName, current.Items)
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	cleared := current.Clear()
	if err := h.carts.Save(ctx, cleared); err != nil {
		// The invoice is already committed.
		_ = c.Error(err)
	}

	c.JSON(http.StatusCreated, CheckoutResponse{InvoiceID: invoiceID, Cart: cart.NewResponse(cleared)})
}

// ListInvoices accepts start_date and end_date as YYYY-MM-DD; both days are
// included in the range.
func (h *Handler) ListInvoices(c *gin.Context) {
	filter := Filter{CustomerName: c.Query("customer_name")}

	if raw := c.Query("start_date"); raw != "" {
		start, err := time.Parse(dateLayout, raw)
		if err != nil {
			apperrors.BadRequest(c, "start_date must be YYYY-MM-DD")
			return
		}
		filter.StartDate = start
	}
	if raw := c.Query("end_date"); raw != "" {
		end, err := time.Parse(dateLayout, raw)
		if err != nil {
			apperrors.BadRequest(c, "end_date must be YYYY-MM-DD")
			return
		}
		filter.EndDate = end.AddDate(0, 0, 1)
	}

	invoices, err := h.useCase.List(c.Request.Context(), filter)
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, invoices)
}

func (h *Handler) GetInvoice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apperrors.BadRequest(c, "id must be a positive integer")
		return
	}

	inv, err := h.useCase.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}
