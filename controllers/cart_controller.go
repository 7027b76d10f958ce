package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/middleware"
	"github.com/kendall-kelly/cosmetics-store-api/services"
	"go.uber.org/zap"
)

const (
	cartEventsWriteWait  = 10 * time.Second
	cartEventsPongWait   = 60 * time.Second
	cartEventsPingPeriod = cartEventsPongWait * 9 / 10
)

// AddCartItemRequest represents the request body for adding a product to the cart
type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gte=1"`
}

// UpdateCartItemRequest represents the request body for changing a line's quantity
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// cartOwner resolves whose cart the request addresses: the session user, otherwise the guest cookie
func cartOwner(c *gin.Context) services.CartOwner {
	if userID, err := middleware.GetUserID(c); err == nil {
		return services.UserCart(userID)
	}
	return services.GuestCart(middleware.GetGuestID(c))
}

// GetCart handles GET /api/v1/cart - returns the cart with product details and totals
func GetCart(c *gin.Context) {
	view, err := services.GetCartService().Get(c.Request.Context(), cartOwner(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load cart")
		return
	}
	respondOK(c, http.StatusOK, view)
}

// GetCartCount handles GET /api/v1/cart/count - returns the total quantity in the cart
func GetCartCount(c *gin.Context) {
	count, err := services.GetCartService().Count(c.Request.Context(), cartOwner(c))
	if err != nil {
		handleServiceError(c, err, "Failed to count cart items")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"count": count})
}

// AddCartItem handles POST /api/v1/cart/items - adds a product, summing with an existing line
func AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	view, err := services.GetCartService().Add(c.Request.Context(), cartOwner(c), req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(c, err, "Failed to add item to cart")
		return
	}
	respondOK(c, http.StatusOK, view)
}

// UpdateCartItem handles PUT /api/v1/cart/items/:id - sets a line's quantity
func UpdateCartItem(c *gin.Context) {
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	view, err := services.GetCartService().SetQuantity(c.Request.Context(), cartOwner(c), c.Param("id"), *req.Quantity)
	if err != nil {
		handleServiceError(c, err, "Failed to update cart item")
		return
	}
	respondOK(c, http.StatusOK, view)
}

// RemoveCartItem handles DELETE /api/v1/cart/items/:id - removes a line
func RemoveCartItem(c *gin.Context) {
	view, err := services.GetCartService().Remove(c.Request.Context(), cartOwner(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to remove cart item")
		return
	}
	respondOK(c, http.StatusOK, view)
}

// ClearCart handles DELETE /api/v1/cart - empties the cart
func ClearCart(c *gin.Context) {
	if err := services.GetCartService().Clear(c.Request.Context(), cartOwner(c)); err != nil {
		handleServiceError(c, err, "Failed to clear cart")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"count": 0})
}

// MergeCart handles POST /api/v1/cart/merge - moves the guest cart into the signed-in user's cart
func MergeCart(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	view, err := services.GetCartService().Merge(c.Request.Context(), middleware.GetGuestID(c), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to merge cart")
		return
	}
	respondOK(c, http.StatusOK, view)
}

func allowedOrigin(cfg *config.Config) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range cfg.CORSAllowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}
}

// CartEvents handles GET /api/v1/cart/events - streams the cart count over a websocket.
// The current count is sent on connect and again after every change.
func CartEvents(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		streamCartEvents(c, logger)
	}
}

func streamCartEvents(c *gin.Context, logger *zap.Logger) {
	cfg := config.GetConfig()
	cart := services.GetCartService()
	owner := cartOwner(c)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     allowedOrigin(cfg),
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logger.Debug("cart events upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := cart.Notifier().Subscribe(owner.Key())
	defer unsubscribe()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends data; reading keeps pongs flowing and notices disconnects.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(cartEventsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cartEventsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(event services.CartEvent) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(cartEventsWriteWait))
		return conn.WriteJSON(event) == nil
	}

	count, err := cart.Count(ctx, owner)
	if err != nil {
		logger.Warn("failed to read initial cart count", zap.String("owner", owner.Key()), zap.Error(err))
	}
	if !send(services.CartEvent{Owner: owner.Key(), Count: count}) {
		return
	}

	ticker := time.NewTicker(cartEventsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cartEventsWriteWait))
			return
		case event, ok := <-events:
			if !ok || !send(event) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cartEventsWriteWait)); err != nil {
				return
			}
		}
	}
}
