package configs_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"configmarket-backend/internal/bootstrap"
	"configmarket-backend/internal/shared/auth"
	"configmarket-backend/internal/shared/config"
)

func buildTestApp(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "handler-test-secret")

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

func bearerFor(t *testing.T, sub string) string {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{Sub: sub, Email: sub + "@example.com"})
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func uploadAs(t *testing.T, router *gin.Engine, token, filename, content string) string {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write([]byte(content)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		FileID string `json:"fileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return created.FileID
}

func TestPublishBrowseAndRate(t *testing.T) {
	router := buildTestApp(t)

	seller := bearerFor(t, "user-seller")
	buyer := bearerFor(t, "user-buyer")

	fileID := uploadAs(t, router, seller, "spawn.yml", "spawn:\n  protect: true\n")

	resp := doJSON(t, router, http.MethodPost, "/api/v1/configs", seller, map[string]any{
		"fileId":   fileID,
		"title":    "Spawn Protection",
		"category": "survival",
		"versions": []string{"1.20", "1.21"},
		"tags":     []string{"PvP", "spawn"},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create config: expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		ConfigID string   `json:"configId"`
		Tags     []string `json:"tags"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ConfigID == "" {
		t.Fatalf("expected configId, got empty")
	}
	if len(created.Tags) != 2 || created.Tags[0] != "pvp" {
		t.Fatalf("expected normalized tags [pvp spawn], got %v", created.Tags)
	}

	// Browsing needs no identity beyond a guest header.
	reqList := httptest.NewRequest(http.MethodGet, "/api/v1/configs?category=survival", nil)
	reqList.Header.Set("X-Guest-Id", "browser")
	respList := httptest.NewRecorder()
	router.ServeHTTP(respList, reqList)
	if respList.Code != http.StatusOK {
		t.Fatalf("list configs: expected status 200, got %d", respList.Code)
	}
	var listed []struct {
		ConfigID string `json:"configId"`
	}
	if err := json.NewDecoder(respList.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed) != 1 || listed[0].ConfigID != created.ConfigID {
		t.Fatalf("expected the published config in the listing, got %v", listed)
	}

	respRate := doJSON(t, router, http.MethodPost, "/api/v1/configs/"+created.ConfigID+"/ratings", buyer, map[string]any{"score": 5})
	if respRate.Code != http.StatusOK {
		t.Fatalf("rate config: expected status 200, got %d: %s", respRate.Code, respRate.Body.String())
	}
	var rated struct {
		RatingAvg   float64 `json:"ratingAvg"`
		RatingCount int     `json:"ratingCount"`
	}
	if err := json.NewDecoder(respRate.Body).Decode(&rated); err != nil {
		t.Fatalf("decode rating response: %v", err)
	}
	if rated.RatingAvg != 5 || rated.RatingCount != 1 {
		t.Fatalf("expected aggregate (5, 1), got (%v, %v)", rated.RatingAvg, rated.RatingCount)
	}
}

func TestGuestsCannotPublish(t *testing.T) {
	router := buildTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/configs", strings.NewReader(`{"fileId":"x","title":"t","category":"other"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "anon")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if envelope.Error.Code != "login_required" {
		t.Fatalf("expected code login_required, got %s", envelope.Error.Code)
	}
}

func TestPaidDownloadFlow(t *testing.T) {
	router := buildTestApp(t)

	seller := bearerFor(t, "user-seller")
	buyer := bearerFor(t, "user-buyer")

	fileID := uploadAs(t, router, seller, "kits.yml", "kits:\n  starter: []\n")
	resp := doJSON(t, router, http.MethodPost, "/api/v1/configs", seller, map[string]any{
		"fileId":     fileID,
		"title":      "Premium Kits",
		"category":   "pvp",
		"priceCents": 499,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create config: expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ConfigID string `json:"configId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	download := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/configs/"+created.ConfigID+"/download", nil)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := download(buyer); rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402 before purchase, got %d", rec.Code)
	}

	respBuy := doJSON(t, router, http.MethodPost, "/api/v1/configs/"+created.ConfigID+"/purchase", buyer, nil)
	if respBuy.Code != http.StatusCreated {
		t.Fatalf("purchase: expected status 201, got %d: %s", respBuy.Code, respBuy.Body.String())
	}

	if rec := download(buyer); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 after purchase, got %d", rec.Code)
	}

	respAgain := doJSON(t, router, http.MethodPost, "/api/v1/configs/"+created.ConfigID+"/purchase", buyer, nil)
	if respAgain.Code != http.StatusConflict {
		t.Fatalf("expected status 409 on duplicate purchase, got %d", respAgain.Code)
	}
}
