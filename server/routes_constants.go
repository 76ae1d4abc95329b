package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session tokens
	RouteAuthLogin     = "/auth/login"
	RouteAuthLoginOIDC = "/auth/login/oidc"
	RouteAuthRefresh   = "/auth/refresh"
	RouteUserInfo      = "/auth/userinfo"

	// Account lifecycle, driven by action tokens
	RouteSignup             = "/auth/signup"
	RouteActivate           = "/auth/activate"
	RouteResendVerification = "/auth/activate/resend"
	RouteForgotPassword     = "/auth/forgot-password"
	RouteResetPassword      = "/auth/reset-password"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
