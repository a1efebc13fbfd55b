package httpapi

import (
	"github.com/gin-gonic/gin"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/logging"
	"certificatePortal/models"
)

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler, corsOrigin string) *gin.Engine {
	if h.Log == nil {
		h.Log = logging.Nop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(h.Log), cors(corsOrigin))

	authed := auth.RequireAuth(h.Gateway)
	admin := auth.RequireRole(h.Gateway, models.RoleAdmin)

	api := r.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.GET("/verify", authed, h.Verify)
		api.GET("/template", authed, admin, h.GetTemplate)
		api.POST("/template", authed, admin, h.SetTemplate)
		api.GET("/search", authed, h.Search)
		api.GET("/generate-certificate", h.GenerateCertificate)
		api.GET("/status", authed, h.Status)
		api.GET("/reload-data", authed, admin, h.ReloadData)
	}
	r.POST("/upload-excel", authed, admin, h.UploadExcel)
	return r
}
