package server

import (
	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/rallyapi"
)

func (s *Server) initRoutes() {
	// Staff
	s.RegisterRouteHandler("POST "+rallyapi.RouteStaffLogin, ChainMiddleware(s.StaffLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+rallyapi.RouteStaffRefresh, ChainMiddleware(s.StaffRefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+rallyapi.RouteStaffMe, ChainMiddleware(s.StaffMeHandler(), s.APIMiddleware(s.RequireAuth(identity.Staff))...))

	// Teams
	s.RegisterRouteHandler("POST "+rallyapi.RouteTeamLogin, ChainMiddleware(s.TeamLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+rallyapi.RouteTeamRefresh, ChainMiddleware(s.TeamRefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+rallyapi.RouteTeamMe, ChainMiddleware(s.TeamMeHandler(), s.APIMiddleware(s.RequireAuth(identity.Team))...))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(s.NotFoundHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+rallyapi.RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("/", ChainMiddleware(s.NotFoundHandler(), s.APIMiddleware()...))
}
