package server

// Route path constants
// All console routes are defined here to ensure consistency and prevent typos
const (
	RoutePrefix = "/api/console"

	// Session Routes
	RouteSession               = RoutePrefix + "/session"
	RouteSessionLogin          = RoutePrefix + "/session/login"
	RouteSessionNewPassword    = RoutePrefix + "/session/new-password"
	RouteSessionCancel         = RoutePrefix + "/session/cancel"
	RouteSessionLogout         = RoutePrefix + "/session/logout"
	RouteSessionForgotPassword = RoutePrefix + "/session/forgot-password"
	RouteSessionResetPassword  = RoutePrefix + "/session/reset-password"
	RouteSessionEvents         = RoutePrefix + "/session/events"

	// Catalog Routes
	RouteProducts    = RoutePrefix + "/products"
	RouteProduct     = RoutePrefix + "/products/{id}"
	RouteOrders      = RoutePrefix + "/orders"
	RouteOrder       = RoutePrefix + "/orders/{id}"
	RouteOrderStatus = RoutePrefix + "/orders/{id}/status"
	RouteDashboard   = RoutePrefix + "/dashboard"

	// Fallback
	RouteAll = RoutePrefix + "/"
)
