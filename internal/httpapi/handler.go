// Package httpapi exposes the portal over HTTP/JSON with gin.
package httpapi

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/certificates"
	"certificatePortal/internal/common"
	"certificatePortal/internal/ingest"
	"certificatePortal/internal/logging"
	"certificatePortal/internal/render"
	"certificatePortal/models"
)

// UploadField is the multipart field carrying the spreadsheet.
const UploadField = "excel"

// Handler serves every portal route.
type Handler struct {
	Gateway   *auth.Gateway
	Pipeline  *ingest.Pipeline
	Registry  *render.Registry
	Certs     *certificates.Service
	Log       logging.Logger
	AutoPrint bool
	MaxUpload int64
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) Register(c *gin.Context) {
	var in registerRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}
	u, err := h.Gateway.Register(c.Request.Context(), in.Username, in.Password, models.Role(in.Role))
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Registration successful!",
		"username": u.Username,
		"role":     u.Role,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required"})
		return
	}
	s, err := h.Gateway.Authenticate(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, common.ErrUnauthorized) {
			status = http.StatusBadRequest
		}
		writeError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Login successful!",
		"token":    s.Token,
		"role":     s.Role,
		"username": s.Username,
	})
}

func (h *Handler) Verify(c *gin.Context) {
	claims, _ := auth.FromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user":  gin.H{"username": claims.Username, "role": claims.Role},
	})
}

func (h *Handler) GetTemplate(c *gin.Context) {
	t, err := h.Registry.GetActive(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": t})
}

type templateRequest struct {
	Template string `json:"template"`
}

func (h *Handler) SetTemplate(c *gin.Context) {
	var in templateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid template"})
		return
	}
	t, err := h.Registry.SetActive(c.Request.Context(), in.Template)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template updated successfully", "template": t})
}

func (h *Handler) UploadExcel(c *gin.Context) {
	if h.MaxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUpload)
	}
	fh, err := c.FormFile(UploadField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": fmt.Sprintf("File exceeds %d bytes", tooBig.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusInternalServerError, common.Wrap(common.ErrIngestion, err, "Error saving data"))
		return
	}
	defer f.Close()

	res, err := h.Pipeline.Ingest(c.Request.Context(), f, fh.Filename)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Excel uploaded successfully!", "recordCount": res.RecordCount})
}

func (h *Handler) Search(c *gin.Context) {
	rec, err := h.Certs.FindByName(c.Request.Context(), c.Query("name"))
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": rec})
}

// GenerateCertificate answers with an HTML page, so failures are HTML too.
// The token may come from the Authorization header or the token query
// parameter, header first, so the page can be opened in a new tab.
func (h *Handler) GenerateCertificate(c *gin.Context) {
	name := c.Query("name")
	tok, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		tok = c.Query("token")
	}
	if tok == "" {
		htmlError(c, http.StatusUnauthorized, "Access Denied", "Please login first")
		return
	}
	claims, err := h.Gateway.Verify(tok)
	if err != nil {
		htmlError(c, http.StatusUnauthorized, "Access Denied", "Invalid or expired token")
		return
	}

	doc, _, err := h.Certs.GenerateDocument(c.Request.Context(), name, claims)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			htmlError(c, http.StatusNotFound, "Not Found", common.Message(err))
			return
		}
		h.Log.Error(c.Request.Context(), "generate certificate failed", "name", name, "err", err)
		htmlError(c, http.StatusInternalServerError, "Error", "Error generating certificate")
		return
	}
	if h.AutoPrint {
		doc = render.WithAutoPrint(doc)
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", doc)
}

func (h *Handler) Status(c *gin.Context) {
	claims, _ := auth.FromContext(c.Request.Context())
	st, err := h.Certs.Status(c.Request.Context())
	if err != nil {
		msg := common.Detail(err)
		if msg == "" {
			msg = common.Message(err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "connected",
		"recordCount": st.RecordCount,
		"template":    st.Template,
		"message":     st.Message,
		"user":        gin.H{"username": claims.Username, "role": claims.Role},
	})
}

func (h *Handler) ReloadData(c *gin.Context) {
	res, err := h.Pipeline.Reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error reloading data", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Data reloaded successfully!", "recordCount": res.RecordCount})
}

func htmlError(c *gin.Context, status int, title, msg string) {
	body := fmt.Sprintf("<h1>%s</h1><p>%s</p>", html.EscapeString(title), html.EscapeString(msg))
	c.Data(status, "text/html; charset=utf-8", []byte(body))
}
