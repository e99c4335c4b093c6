package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	defaultMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	defaultHeaders = []string{"Origin", "Content-Type", "Accept-Language", apiKeyHeader, requestIDHeader, "Authorization"}
)

// CORS returns a configured CORS middleware. Empty method and header lists
// fall back to what the API uses. No origins means any origin.
func CORS(origins, methods, headers []string) gin.HandlerFunc {
	if len(methods) == 0 {
		methods = defaultMethods
	}
	if len(headers) == 0 {
		headers = defaultHeaders
	}
	cfg := cors.Config{
		AllowMethods:  methods,
		AllowHeaders:  headers,
		ExposeHeaders: []string{requestIDHeader},
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
