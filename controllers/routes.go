package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/middleware"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the storefront, auth, cart, customer and admin routes on v1.
// authLimit guards the auth endpoints.
func RegisterRoutes(v1 *gin.RouterGroup, cfg *config.Config, admins middleware.AdminChecker, authLimit gin.HandlerFunc, logger *zap.Logger) {
	requireSession := middleware.EnsureValidToken(cfg)
	optionalSession := middleware.OptionalAuth(cfg)

	v1.GET("/uploads/*key", GetUploadedFile)

	v1.GET("/products", ListProducts)
	v1.GET("/products/:id", GetProduct)
	v1.GET("/products/:id/related", GetRelatedProducts)
	v1.GET("/products/:id/reviews", GetProductReviews)
	v1.POST("/products/:id/reviews", requireSession, CreateProductReview)

	auth := v1.Group("/auth", authLimit)
	{
		auth.POST("/signup", SignUp)
		auth.POST("/signin", SignIn)
		auth.GET("/oauth/:provider", OAuthStart)
		auth.GET("/callback", OAuthCallback)
		auth.POST("/signout", optionalSession, SignOut)
		auth.POST("/reset-password", ResetPassword)
		auth.POST("/update-password", requireSession, UpdatePassword)
		auth.GET("/session", optionalSession, GetSession)
	}

	cart := v1.Group("/cart", optionalSession, middleware.GuestIdentity(cfg))
	{
		cart.GET("", GetCart)
		cart.DELETE("", ClearCart)
		cart.GET("/count", GetCartCount)
		cart.GET("/events", CartEvents(logger))
		cart.POST("/items", AddCartItem)
		cart.PUT("/items/:id", UpdateCartItem)
		cart.DELETE("/items/:id", RemoveCartItem)
		cart.POST("/merge", MergeCart)
	}

	customer := v1.Group("", requireSession)
	{
		customer.POST("/checkout", Checkout)
		customer.GET("/orders", ListMyOrders)
		customer.GET("/orders/:id", GetMyOrder)
		customer.POST("/orders/:id/payment-proof", SubmitPaymentProof)
		customer.GET("/profile", GetMyProfile)
		customer.PUT("/profile", UpdateMyProfile)
		customer.POST("/profile/avatar", UploadAvatar)
		customer.GET("/profile/points", GetMyPoints)
	}

	// Every admin route, reads and mutations alike, goes through the gate
	admin := v1.Group("/admin", optionalSession, middleware.RequireAdmin(admins, cfg, logger))
	{
		admin.GET("/check", AdminCheck)
		admin.GET("/dashboard", AdminDashboard)

		admin.GET("/products", AdminListProducts)
		admin.POST("/products", AdminCreateProduct)
		admin.PUT("/products/:id", AdminUpdateProduct)
		admin.DELETE("/products/:id", AdminDeleteProduct)
		admin.POST("/products/:id/image", AdminUploadProductImage)

		admin.GET("/orders", AdminListOrders)
		admin.GET("/orders/:id", AdminGetOrder)
		admin.PATCH("/orders/:id/status", AdminUpdateOrderStatus)
		admin.POST("/orders/:id/payment/confirm", AdminConfirmPayment)
		admin.POST("/orders/:id/payment/cancel", AdminCancelPayment)
		admin.POST("/orders/:id/payment/refund", AdminRefundPayment)

		admin.GET("/customers", AdminListCustomers)
		admin.GET("/customers/:id", AdminGetCustomer)
	}
}
