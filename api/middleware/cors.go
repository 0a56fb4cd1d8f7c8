package middleware

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the chat frontend to call the bridge from the browser.
// Origins come from FRONTEND_ORIGINS (comma-separated), with local dev
// defaults.
func CORS() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins()
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	config.AllowCredentials = true

	return cors.New(config)
}

func allowedOrigins() []string {
	env := os.Getenv("FRONTEND_ORIGINS")
	if strings.TrimSpace(env) == "" {
		return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}

	var origins []string
	for _, o := range strings.Split(env, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
