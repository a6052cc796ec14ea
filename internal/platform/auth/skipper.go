package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: health checks, metrics and login.
var publicPaths = map[string]bool{
	"/health":     true,
	"/health/db":  true,
	"/metrics":    true,
	"/auth/login": true,
}

// AuthSkipper matches on the registered route, not the raw URL.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
