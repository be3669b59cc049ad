package middleware

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	defaultMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	defaultHeaders = []string{"Origin", "Content-Type", apiKeyHeader, requestIDHeader}
)

// CORS returns a configured CORS middleware. Empty method and header lists
// fall back to what the notification bridge uses.
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
