package rallyapi

// Rally API auth routes
const (
	// Staff (NEI) accounts
	RouteStaffLogin   = "/auth/login"
	RouteStaffRefresh = "/auth/refresh/"

	// Teams
	RouteTeamLogin   = "/team-auth/login"
	RouteTeamRefresh = "/team-auth/refresh"

	// Protected resources
	RouteStaffMe = "/users/me"
	RouteTeamMe  = "/teams/me"

	RouteHealth = "/health"
)
