package httptransport

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cipher-server-go/internal/domain/session"
	"cipher-server-go/internal/platform/config"
	"cipher-server-go/internal/platform/logging"
)

// Options configures the HTTP router builder.
type Options struct {
	Config   *config.Config
	Logger   *logging.Logger
	Sessions *session.Manager
}

// Router bundles the gin engine and the common route groups.
type Router struct {
	Engine  *gin.Engine
	API     *gin.RouterGroup
	Secured *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with recovery, request logging
// and CORS, plus a token-protected route group when a session manager is
// supplied.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("http router requires a logger")
	}

	if opts.Config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(opts.Logger))
	_ = engine.SetTrustedProxies(nil)

	origins := opts.Config.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := engine.Group("/api")
	var secured *gin.RouterGroup
	if opts.Sessions != nil {
		secured = api.Group("")
		secured.Use(authMiddleware(opts.Sessions))
	}

	return &Router{
		Engine:  engine,
		API:     api,
		Secured: secured,
	}, nil
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoTag("HTTP", "%s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Round(time.Microsecond),
		)
	}
}

// authMiddleware verifies a Bearer token against the session manager and puts
// the resolved credential on the request context.
func authMiddleware(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			RespondError(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}

		cred, err := sessions.VerifyToken(c.Request.Context(), token)
		if err != nil {
			RespondError(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}

		c.Set("client_id", cred.ClientID)
		c.Set("client_username", cred.Username)
		c.Next()
	}
}
