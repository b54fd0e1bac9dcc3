package http

import (
	"net/http"

	"github.com/rs/cors"
)

// DefaultAllowedOrigin is the local chat frontend
const DefaultAllowedOrigin = "http://localhost:3000"

// corsHandler lets the allowed origins call with credentials, using any
// method or header
func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{DefaultAllowedOrigin}
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})
}
