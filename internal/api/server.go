// Package api exposes the shop over HTTP: auth, products, image files, the
// seed endpoint and the websocket upgrade.
package api

import (
	"net/http"

	"teslo/internal/auth"
	"teslo/internal/files"
	"teslo/internal/gateway"
	"teslo/internal/logger"
	"teslo/internal/models"
	"teslo/internal/seed"
	"teslo/internal/sentry"
	"teslo/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server holds the collaborators the handlers need.
type Server struct {
	store   storage.Store
	auth    *auth.Service
	uploads *files.Uploads
	gateway *gateway.Gateway
	seed    *seed.Data
	log     *zap.Logger
}

func NewServer(store storage.Store, authSvc *auth.Service, uploads *files.Uploads, gw *gateway.Gateway, seedData *seed.Data) *Server {
	return &Server{
		store:   store,
		auth:    authSvc,
		uploads: uploads,
		gateway: gw,
		seed:    seedData,
		log:     logger.Named("api"),
	}
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	if sentry.Enabled() {
		r.Use(sentry.Middleware())
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)
	authGroup.GET("/check-status", s.requireAuth(), s.checkStatus)
	authGroup.GET("/private", s.requireAuth(), s.private)
	authGroup.GET("/private2", s.requireAuth(models.RoleSuperUser, models.RoleAdmin), s.privateWithRole)
	authGroup.GET("/private3", s.requireAuth(models.RoleAdmin), s.privateWithRole)

	products := api.Group("/products")
	products.POST("", s.requireAuth(models.RoleAdmin), s.createProduct)
	products.GET("", s.listProducts)
	products.GET("/:term", s.findProduct)
	products.PATCH("/:id", s.requireAuth(models.RoleAdmin), s.updateProduct)
	products.DELETE("/:id", s.requireAuth(models.RoleAdmin), s.deleteProduct)

	api.POST("/files/product", s.uploadProductImage)
	api.GET("/files/product/:imageName", s.productImage)

	api.GET("/seed", s.runSeed)

	r.GET("/ws", func(c *gin.Context) {
		s.gateway.ServeWS(c.Writer, c.Request)
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"statusCode": http.StatusNotFound,
			"message":    "Cannot " + c.Request.Method + " " + c.Request.URL.Path,
			"error":      http.StatusText(http.StatusNotFound),
		})
	})
	return r
}

func (s *Server) runSeed(c *gin.Context) {
	if err := seed.Run(s.store, s.seed); err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusOK, seed.Done)
}
