package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pixelframe/pixelframe/internal/config"
	"github.com/pixelframe/pixelframe/internal/models"
	"github.com/pixelframe/pixelframe/internal/permission"
	"github.com/pixelframe/pixelframe/internal/placement"
	"github.com/pixelframe/pixelframe/internal/quota"
	"github.com/pixelframe/pixelframe/internal/realtime"
	"github.com/pixelframe/pixelframe/internal/snapshot"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{Secret: "test-secret", TTLHours: 1}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:api_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	errMigrate := db.AutoMigrate(
		&models.User{}, &models.Frame{}, &models.Pixel{}, &models.PixelHistory{},
		&models.Snapshot{}, &models.QuotaState{}, &models.FramePermission{},
	)
	if errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	hub := realtime.NewHub()
	t.Cleanup(hub.Close)
	quotaMgr := quota.NewManager(db)
	permissions := permission.NewStore(db)
	snapshots := snapshot.NewStore(db, 3)

	engine := gin.New()
	RegisterRoutes(engine, Deps{
		DB:          db,
		JWT:         testJWT,
		Quota:       quotaMgr,
		Permissions: permissions,
		Placement:   placement.NewService(db, quotaMgr, permissions, hub),
		Snapshots:   snapshots,
		Hub:         hub,
	})
	return engine, db
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

func registerUser(t *testing.T, engine *gin.Engine, handle string) string {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/api/register", "", map[string]interface{}{
		"handle":   handle,
		"password": "correct-horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", handle, rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatalf("register %s: empty token", handle)
	}
	return token
}

func createTestFrame(t *testing.T, engine *gin.Engine, token, slug, mode string) {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/api/frames", token, map[string]interface{}{
		"slug":       slug,
		"title":      "Test Frame",
		"width":      128,
		"height":     72,
		"permission": mode,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create frame: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterAndLogin(t *testing.T) {
	engine, _ := setupRouter(t)

	registerUser(t, engine, "alice")

	rec := doJSON(t, engine, http.MethodPost, "/api/register", "", map[string]interface{}{
		"handle":   "alice",
		"password": "another-pass",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate handle: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/login", "", map[string]interface{}{
		"handle":   "alice",
		"password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/login", "", map[string]interface{}{
		"handle":   "alice",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	engine, _ := setupRouter(t)

	rec := doJSON(t, engine, http.MethodGet, "/api/frames", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/frames", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rec.Code)
	}
}

func TestFrameLifecycle(t *testing.T) {
	engine, _ := setupRouter(t)
	token := registerUser(t, engine, "alice")

	rec := doJSON(t, engine, http.MethodPost, "/api/frames", token, map[string]interface{}{
		"slug": "art", "title": "Art", "width": 100, "height": 100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-preset size: expected 400, got %d", rec.Code)
	}

	createTestFrame(t, engine, token, "art", "open")

	rec = doJSON(t, engine, http.MethodPost, "/api/frames", token, map[string]interface{}{
		"slug": "art", "title": "Again", "width": 128, "height": 72,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate slug: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/frames", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	frames, _ := decodeBody(t, rec)["frames"].([]interface{})
	if len(frames) != 1 {
		t.Fatalf("list: expected 1 frame, got %d", len(frames))
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/frames/alice/art", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPut, "/api/frames/alice/art", token, map[string]interface{}{
		"title": "Renamed", "frozen": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	frame, _ := decodeBody(t, rec)["frame"].(map[string]interface{})
	if frame["title"] != "Renamed" || frame["frozen"] != true {
		t.Fatalf("update: unexpected frame %v", frame)
	}

	other := registerUser(t, engine, "bob")
	rec = doJSON(t, engine, http.MethodPut, "/api/frames/alice/art", other, map[string]interface{}{"title": "Hax"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner update: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodDelete, "/api/frames/alice/art", other, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner delete: expected 403, got %d", rec.Code)
	}
	rec = doJSON(t, engine, http.MethodDelete, "/api/frames/alice/art", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, engine, http.MethodGet, "/api/frames/alice/art", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestOwnerOnlyFrameHiddenFromOthers(t *testing.T) {
	engine, _ := setupRouter(t)
	owner := registerUser(t, engine, "alice")
	viewer := registerUser(t, engine, "bob")
	createTestFrame(t, engine, owner, "secret", "owner-only")

	rec := doJSON(t, engine, http.MethodGet, "/api/frames/alice/secret", owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner get: status %d", rec.Code)
	}
	rec = doJSON(t, engine, http.MethodGet, "/api/frames/alice/secret", viewer, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer get: expected 403, got %d", rec.Code)
	}
	rec = doJSON(t, engine, http.MethodGet, "/api/frames/alice/secret/state", viewer, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer state: expected 403, got %d", rec.Code)
	}
}

func TestPlaceAndState(t *testing.T) {
	engine, _ := setupRouter(t)
	token := registerUser(t, engine, "alice")
	createTestFrame(t, engine, token, "art", "open")

	rec := doJSON(t, engine, http.MethodPost, "/api/frames/alice/art/pixels", token, map[string]interface{}{
		"x": 3, "y": 4, "color": 0xFFBE0039,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("place: status %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("place: expected success, got %v", body)
	}
	pixel, _ := body["pixel"].(map[string]interface{})
	if pixel["x"] != float64(3) || pixel["y"] != float64(4) {
		t.Fatalf("place: unexpected pixel %v", pixel)
	}
	if body["quotaRemaining"] != float64(models.QuotaCap-1) {
		t.Fatalf("place: expected quotaRemaining %d, got %v", models.QuotaCap-1, body["quotaRemaining"])
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/art/pixels", token, map[string]interface{}{
		"x": 999, "y": 4, "color": 0xFFBE0039,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out of bounds: expected 400, got %d", rec.Code)
	}
	if code := decodeBody(t, rec)["code"]; code != "INVALID_COORDINATES" {
		t.Fatalf("out of bounds: expected INVALID_COORDINATES, got %v", code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/art/pixels", token, map[string]interface{}{
		"x": 3, "y": 4, "color": 0x12345678,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad color: expected 400, got %d", rec.Code)
	}
	if code := decodeBody(t, rec)["code"]; code != "INVALID_COLOR" {
		t.Fatalf("bad color: expected INVALID_COLOR, got %v", code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/missing/pixels", token, map[string]interface{}{
		"x": 0, "y": 0, "color": 0xFFBE0039,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing frame: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/frames/alice/art/state", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: status %d", rec.Code)
	}
	state := decodeBody(t, rec)
	pixels, _ := state["pixels"].([]interface{})
	if len(pixels) != 1 {
		t.Fatalf("state: expected 1 pixel, got %d", len(pixels))
	}
}

func TestPlaceOnFrozenFrame(t *testing.T) {
	engine, _ := setupRouter(t)
	token := registerUser(t, engine, "alice")
	createTestFrame(t, engine, token, "art", "open")

	rec := doJSON(t, engine, http.MethodPut, "/api/frames/alice/art", token, map[string]interface{}{"frozen": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("freeze: status %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/art/pixels", token, map[string]interface{}{
		"x": 0, "y": 0, "color": 0xFFBE0039,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("frozen place: expected 409, got %d", rec.Code)
	}
	if code := decodeBody(t, rec)["code"]; code != "FRAME_FROZEN" {
		t.Fatalf("frozen place: expected FRAME_FROZEN, got %v", code)
	}
}

func TestUndoEndpoint(t *testing.T) {
	engine, _ := setupRouter(t)
	token := registerUser(t, engine, "alice")
	createTestFrame(t, engine, token, "art", "open")

	rec := doJSON(t, engine, http.MethodPost, "/api/frames/alice/art/undo", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("undo nothing: expected 409, got %d", rec.Code)
	}
	if code := decodeBody(t, rec)["code"]; code != "NOTHING_TO_UNDO" {
		t.Fatalf("undo nothing: expected NOTHING_TO_UNDO, got %v", code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/art/pixels", token, map[string]interface{}{
		"x": 1, "y": 1, "color": 0xFF000000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("place: status %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/art/undo", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("undo: status %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	pixel, _ := body["pixel"].(map[string]interface{})
	if pixel["color"] != float64(0) {
		t.Fatalf("undo: expected transparent restore, got %v", pixel)
	}
	if body["quotaRemaining"] != float64(models.QuotaCap) {
		t.Fatalf("undo: expected refunded quota %d, got %v", models.QuotaCap, body["quotaRemaining"])
	}
}

func TestAccessRequestFlow(t *testing.T) {
	engine, _ := setupRouter(t)
	owner := registerUser(t, engine, "alice")
	guest := registerUser(t, engine, "bob")
	createTestFrame(t, engine, owner, "gated", "approval-required")

	rec := doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/pixels", guest, map[string]interface{}{
		"x": 0, "y": 0, "color": 0xFFBE0039,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unapproved place: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/access-requests", guest, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("request access: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/access-requests", guest, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate request: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/frames/alice/gated/permissions", guest, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner list: expected 403, got %d", rec.Code)
	}
	rec = doJSON(t, engine, http.MethodGet, "/api/frames/alice/gated/permissions", owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner list: status %d", rec.Code)
	}
	records, _ := decodeBody(t, rec)["permissions"].([]interface{})
	if len(records) != 1 {
		t.Fatalf("owner list: expected 1 record, got %d", len(records))
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/permissions", guest, map[string]interface{}{
		"userHandle": "bob", "type": "contributor",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner resolve: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/permissions", owner, map[string]interface{}{
		"userHandle": "bob", "type": "contributor",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/pixels", guest, map[string]interface{}{
		"x": 0, "y": 0, "color": 0xFFBE0039,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("approved place: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestBlockedUserCannotPlace(t *testing.T) {
	engine, _ := setupRouter(t)
	owner := registerUser(t, engine, "alice")
	guest := registerUser(t, engine, "bob")
	createTestFrame(t, engine, owner, "gated", "approval-required")

	rec := doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/access-requests", guest, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("request access: status %d", rec.Code)
	}
	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/permissions", owner, map[string]interface{}{
		"userHandle": "bob", "type": "blocked",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("block: status %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/gated/pixels", guest, map[string]interface{}{
		"x": 0, "y": 0, "color": 0xFFBE0039,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("blocked place: expected 403, got %d", rec.Code)
	}
	if code := decodeBody(t, rec)["code"]; code != "USER_BLOCKED" {
		t.Fatalf("blocked place: expected USER_BLOCKED, got %v", code)
	}
}

func TestQuotaEndpointAndExhaustion(t *testing.T) {
	engine, db := setupRouter(t)
	token := registerUser(t, engine, "alice")
	createTestFrame(t, engine, token, "art", "open")

	rec := doJSON(t, engine, http.MethodGet, "/api/quota", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quota: status %d", rec.Code)
	}
	if available := decodeBody(t, rec)["available"]; available != float64(models.QuotaCap) {
		t.Fatalf("quota: expected %d, got %v", models.QuotaCap, available)
	}

	state := models.QuotaState{UserHandle: "alice", Available: 0, LastRefill: time.Now().UTC()}
	if errSave := db.Save(&state).Error; errSave != nil {
		t.Fatalf("seed quota: %v", errSave)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/frames/alice/art/pixels", token, map[string]interface{}{
		"x": 0, "y": 0, "color": 0xFFBE0039,
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted place: expected 429, got %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["code"] != "QUOTA_EXCEEDED" {
		t.Fatalf("exhausted place: expected QUOTA_EXCEEDED, got %v", body["code"])
	}
	if _, ok := body["retryAfterMs"]; !ok {
		t.Fatalf("exhausted place: missing retryAfterMs in %v", body)
	}
}
