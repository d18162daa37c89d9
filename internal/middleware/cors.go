package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the portal's back office call the API from the browser
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{
			"X-Optimized",
			"X-Original-Size",
			"X-Optimized-Size",
			"X-Reduction-Percent",
			"X-Placeholder",
		},
		MaxAge: 300,
	})
}
