package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds the HTTP-level settings of the router
type RouterConfig struct {
	UploadDir      string
	CORSOrigins    []string
	MaxUploadBytes int64
}

// NewRouter wires the API routes and serves stored uploads under /uploads
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), CORS(cfg.CORSOrigins))
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	r.GET("/health", h.Health)
	r.POST("/upload", limitBody(cfg.MaxUploadBytes), h.Upload)
	r.POST("/extract-soa", h.ExtractSOA)
	r.Static("/uploads", cfg.UploadDir)

	return r
}

func limitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 {
			if c.Request.ContentLength > max {
				respondTooLarge(c, max)
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
