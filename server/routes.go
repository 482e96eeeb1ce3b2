package server

func (s *Server) initRoutes() {
	// SESSION
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionNewPassword, ChainMiddleware(s.NewPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionCancel, ChainMiddleware(s.CancelChallengeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSessionEvents, ChainMiddleware(s.SessionEventsHandler(), s.APIMiddleware()...))

	// PRODUCTS (require an authenticated session)
	s.RegisterRouteHandler("GET "+RouteProducts, ChainMiddleware(s.ListProductsHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteProducts, ChainMiddleware(s.CreateProductHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteProduct, ChainMiddleware(s.UpdateProductHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteProduct, ChainMiddleware(s.DeleteProductHandler(), s.ProtectedMiddleware()...))

	// ORDERS
	s.RegisterRouteHandler("GET "+RouteOrders, ChainMiddleware(s.ListOrdersHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOrder, ChainMiddleware(s.GetOrderHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteOrderStatus, ChainMiddleware(s.UpdateOrderStatusHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteOrder, ChainMiddleware(s.DeleteOrderHandler(), s.ProtectedMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.ProtectedMiddleware()...))

	// Everything else under the prefix, including CORS preflights
	s.RegisterRouteHandler(RouteAll, ChainMiddleware(s.NotFoundHandler(), s.APIMiddleware()...))
}
