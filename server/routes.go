package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Session tokens
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(s.UserInfoHandler(), s.APIMiddleware()...))
	if s.services.OIDC != nil {
		s.RegisterRouteHandler("POST "+RouteAuthLoginOIDC, ChainMiddleware(s.OIDCLoginHandler(), s.APIMiddleware()...))
	}

	// Account lifecycle
	s.RegisterRouteHandler("POST "+RouteSignup, ChainMiddleware(s.SignupHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteActivate, ChainMiddleware(s.ActivateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteActivate, ChainMiddleware(s.ActivateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteResendVerification, ChainMiddleware(s.ResendActivationHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware()...))

	// Operations
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.OpsMiddleware()...))
	gatherer := s.services.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
