package uploads_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"configmarket-backend/internal/bootstrap"
	"configmarket-backend/internal/shared/config"
)

func buildTestApp(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		UploadsPrefix:   "uploads",
		MaxUploadBytes:  1 << 20,
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app.Router
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "handler-test-guest")
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func uploadFile(t *testing.T, router *gin.Engine, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	router := buildTestApp(t)

	content := []byte("spawn:\n  protect: true\n")
	resp := uploadFile(t, router, "spawn.yml", content)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		FileID   string `json:"fileId"`
		FileName string `json:"fileName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.FileID == "" {
		t.Fatalf("expected fileId, got empty")
	}
	if created.FileName != "spawn.yml" {
		t.Fatalf("expected fileName spawn.yml, got %s", created.FileName)
	}

	reqGet := httptest.NewRequest(http.MethodGet, "/api/v1/files/"+created.FileID+"/download", nil)
	addGuestHeader(reqGet)
	respGet := httptest.NewRecorder()
	router.ServeHTTP(respGet, reqGet)

	if respGet.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", respGet.Code)
	}
	body, err := io.ReadAll(respGet.Body)
	if err != nil {
		t.Fatalf("read download body: %v", err)
	}
	if !bytes.Equal(body, content) {
		t.Fatalf("downloaded bytes differ from uploaded bytes")
	}
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	router := buildTestApp(t)

	resp := uploadFile(t, router, "plugin.exe", []byte("MZ\x90\x00"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if envelope.Error.Code != "disallowed_extension" {
		t.Fatalf("expected code disallowed_extension, got %s", envelope.Error.Code)
	}
}

func TestUploadRejectsDisguisedArchive(t *testing.T) {
	router := buildTestApp(t)

	// Raw JPEG bytes named as an archive.
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	resp := uploadFile(t, router, "pack.zip", jpeg)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if envelope.Error.Code != "content_mismatch" {
		t.Fatalf("expected code content_mismatch, got %s", envelope.Error.Code)
	}
}

func TestUploadAcceptsRealArchive(t *testing.T) {
	router := buildTestApp(t)

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	w, err := zw.Create("config.yml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte("enabled: true\n")); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	resp := uploadFile(t, router, "pack.zip", buf.Bytes())
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		MediaType string `json:"mediaType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.MediaType != "application/zip" {
		t.Fatalf("expected mediaType application/zip, got %q", created.MediaType)
	}
}

func TestFilesRequireIdentity(t *testing.T) {
	router := buildTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}
