// Package adminapi implements the JSON API handlers registered on the web server.
package adminapi

// Init registers all API routes. webserver.Init must run first.
func Init() {
	registerAuthRoutes()
	registerPublicRoutes()
	registerCategoryRoutes()
	registerProductRoutes()
	registerClientRoutes()
	registerGlobalsRoutes()
	registerQuoteRoutes()
	registerSystemRoutes()
}
