package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/certificates"
	"certificatePortal/internal/ingest"
	"certificatePortal/internal/render"
	"certificatePortal/internal/testutil"
	"certificatePortal/repository"
)

type testServer struct {
	router  *gin.Engine
	records *repository.RecordRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d := testutil.OpenInMemoryDB(t, "http")

	tokens, err := auth.NewTokenIssuer("http-secret")
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	gw := auth.NewGateway(repository.NewUserRepository(d), tokens, hasher, nil)

	records := repository.NewRecordRepository(d)
	registry, err := render.NewRegistry(repository.NewSettingRepository(d), nil)
	require.NoError(t, err)

	h := &Handler{
		Gateway:   gw,
		Pipeline:  ingest.NewPipeline(records, ingest.NewStager(t.TempDir()), nil),
		Registry:  registry,
		Certs:     certificates.NewService(records, registry, nil),
		AutoPrint: true,
		MaxUpload: 1 << 20,
	}
	return &testServer{router: NewRouter(h, "*"), records: records}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile(UploadField, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-excel", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// login registers username with role and returns a fresh token.
func (s *testServer) login(t *testing.T, username, role string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/register", "", gin.H{"username": username, "password": "secret1", "role": role})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/login", "", gin.H{"username": username, "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, role, out.Role)
	return out.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/register", "", gin.H{"username": "alice", "password": "secret1", "role": "participant"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"Registration successful!","username":"alice","role":"participant"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/register", "", gin.H{"username": "alice", "password": "secret1", "role": "participant"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username already exists", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/register", "", gin.H{"username": "bob", "password": "secret1", "role": "student"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid username or password", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "Login successful!", out["message"])
	assert.NotEmpty(t, out["token"])

	w = s.do(t, http.MethodGet, "/api/verify", out["token"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"user":{"username":"alice","role":"participant"}}`, w.Body.String())
}

func TestVerify_TokenErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/verify", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access denied. No token provided.", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/verify", "forged.token.value", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid token", decode(t, w)["message"])
}

func TestTemplateRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root", "admin")
	user := s.login(t, "p1", "participant")

	w := s.do(t, http.MethodGet, "/api/template", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied. Admin only.", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/template", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"template":"classic"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/template", admin, gin.H{"template": "fancy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid template", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/template", admin, gin.H{"template": "modern"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Template updated successfully","template":"modern"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/template", admin, nil)
	assert.JSONEq(t, `{"template":"modern"}`, w.Body.String())
}

func TestUploadSearchAndGenerate(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root", "admin")
	user := s.login(t, "p1", "participant")

	w := s.do(t, http.MethodGet, "/api/search?name=Asha", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No data available. Please contact admin to upload student data.", decode(t, w)["message"])

	w = s.upload(t, user, "s.csv", "NAME\nAsha\n")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.upload(t, admin, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(t, admin, "s.csv", "NAME,CIRTIFICATES,college,links\nAsha,Winner,MIT,\nRavi,Participant,IIT,https://x\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Excel uploaded successfully!","recordCount":2}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/search?name=Asha", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"student":{"name":"Asha","certificate":"Winner","college":"MIT"}}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/search?name=Nobody", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, `No record found for "Nobody"`, decode(t, w)["message"])

	// Header token.
	w = s.do(t, http.MethodGet, "/api/generate-certificate?name=Asha", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, w.Body.String(), "Asha")
	assert.Contains(t, w.Body.String(), "window.print()")

	// Query token.
	w = s.do(t, http.MethodGet, "/api/generate-certificate?name=Ravi&token="+user, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Participant")

	w = s.do(t, http.MethodGet, "/api/generate-certificate?name=Asha", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Access Denied</h1>")

	w = s.do(t, http.MethodGet, "/api/generate-certificate?name=Asha&token=bad", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/generate-certificate?name=Nobody", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No record found for &#34;Nobody&#34;")
}

func TestUpload_CorruptFileKeepsRecords(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root", "admin")

	w := s.upload(t, admin, "a.csv", "NAME\nA\nB\n")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.upload(t, admin, "broken.xlsx", "not a workbook")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, decode(t, w)["error"])

	n, err := s.records.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStatusAndReload(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root", "admin")
	user := s.login(t, "p1", "participant")

	w := s.do(t, http.MethodGet, "/api/status", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"connected","recordCount":0,"template":"classic","message":"No data uploaded yet","user":{"username":"p1","role":"participant"}}`, w.Body.String())

	w = s.upload(t, admin, "a.csv", "NAME\nA\nB\nC\n")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/reload-data", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/reload-data", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Data reloaded successfully!","recordCount":3}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/status", admin, nil)
	assert.Equal(t, float64(3), decode(t, w)["recordCount"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
