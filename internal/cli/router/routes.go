package router

// BaseTitle is shown when a route declares no label
const BaseTitle = "ARG Identification System"

// Route names
const (
	RouteLogin            = "login"
	RouteHome             = "home"
	RouteUpload           = "upload"
	RouteVisualization    = "visualization"
	RouteVisualizationARG = "visualization-arg"
	RouteHistory          = "history"
	RouteAdmin            = "admin"
)

// Route is a view and its access requirements
type Route struct {
	Name  string
	Title string // label; empty means BaseTitle alone

	// AllowAnonymous opts the route out of authentication
	AllowAnonymous bool
	RequiresAdmin  bool
}

// RequiresAuth reports whether the route needs a logged-in session
func (r Route) RequiresAuth() bool {
	return !r.AllowAnonymous
}

// DisplayTitle returns the window title for the route
func (r Route) DisplayTitle() string {
	if r.Title == "" {
		return BaseTitle
	}
	return r.Title + " - " + BaseTitle
}

// DefaultRoutes is the application's route table
func DefaultRoutes() []Route {
	return []Route{
		{Name: RouteLogin, AllowAnonymous: true},
		{Name: RouteHome, Title: "Home"},
		{Name: RouteUpload, Title: "File Upload"},
		{Name: RouteVisualization, Title: "Result Visualization"},
		{Name: RouteVisualizationARG, Title: "ARG Visualization"},
		{Name: RouteHistory, Title: "History"},
		{Name: RouteAdmin, Title: "Administration", RequiresAdmin: true},
	}
}
