package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/booth"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/clock"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/config"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/photo"
)

type stubDriver struct {
	available bool
}

func (d *stubDriver) IsAvailable(ctx context.Context) bool { return d.available }
func (d *stubDriver) Prepare(ctx context.Context)          {}
func (d *stubDriver) Capture(ctx context.Context) ([]byte, error) {
	return []byte{0xFF, 0xD8, 0xFF, 0x01}, nil
}
func (d *stubDriver) CaptureLatency() time.Duration { return 10 * time.Millisecond }
func (d *stubDriver) Close() error                  { return nil }

type testHarness struct {
	engine *gin.Engine
	server *Server
	photos *photo.Service
	broker *events.Broker
}

func setupServer(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "booth.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	repo, err := photo.NewRepository(db)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	log := zap.NewNop()
	clk := clock.SystemClock{}
	photos, err := photo.NewService(repo, node, clk, log, t.TempDir())
	if err != nil {
		t.Fatalf("new photo service: %v", err)
	}

	broker := events.NewBroker(log)
	driver := &stubDriver{available: true}
	boothSvc := booth.NewService(booth.Config{
		CountdownDefault: 20 * time.Millisecond,
		FastBuffer:       time.Second,
		SlowBuffer:       2 * time.Second,
	}, driver, broker, photos, log)

	cfg := config.Config{
		Environment:       "test",
		TriggerRateLimit:  3,
		TriggerRateWindow: time.Minute,
	}

	srv := NewServer(cfg, log, clk, boothSvc, photos, broker, driver)
	engine := gin.New()
	srv.RegisterAPIRoutes(engine)

	return &testHarness{engine: engine, server: srv, photos: photos, broker: broker}
}

func TestHealth(t *testing.T) {
	h := setupServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["cameraAvailable"] != true {
		t.Fatalf("cameraAvailable = %v, want true", body["cameraAvailable"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected exposition body")
	}
}

func TestTriggerAccepted(t *testing.T) {
	h := setupServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trigger",
		bytes.NewBufferString(`{"source":"kiosk","durationMs":10}`))
	req.Header.Set("Content-Type", "application/json")
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "accepted" {
		t.Fatalf("status field = %v", body["status"])
	}
}

func TestTriggerEmptyBody(t *testing.T) {
	h := setupServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trigger", nil)
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
}

func TestTriggerRejectsBadDuration(t *testing.T) {
	h := setupServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trigger",
		bytes.NewBufferString(`{"durationMs":3600000}`))
	req.Header.Set("Content-Type", "application/json")
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTriggerRateLimited(t *testing.T) {
	h := setupServer(t)

	var last int
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/trigger", nil)
		h.engine.ServeHTTP(w, req)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("fourth trigger status = %d, want 429", last)
	}
}

func TestPhotosListEmpty(t *testing.T) {
	h := setupServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Photos []map[string]any `json:"photos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Photos) != 0 {
		t.Fatalf("got %d photos, want 0", len(body.Photos))
	}
}

func TestPhotoByCode(t *testing.T) {
	h := setupServer(t)

	saved, err := h.photos.Save(context.Background(), photo.SaveRequest{
		Bytes:         []byte{0xFF, 0xD8, 0xFF, 0x42},
		TriggerSource: "test",
	})
	if err != nil {
		t.Fatalf("save photo: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/photos/"+saved.Code, nil)
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != saved.Code {
		t.Fatalf("code = %v, want %s", body["code"], saved.Code)
	}
}

func TestPhotoImage(t *testing.T) {
	h := setupServer(t)

	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	saved, err := h.photos.Save(context.Background(), photo.SaveRequest{Bytes: img, TriggerSource: "test"})
	if err != nil {
		t.Fatalf("save photo: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/photos/"+saved.Code+"/image", nil)
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), img) {
		t.Fatalf("image bytes differ: got %d bytes", w.Body.Len())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestPhotoNotFound(t *testing.T) {
	h := setupServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/photos/ZZZZ", nil)
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestStreamEventsDeliversBroadcast(t *testing.T) {
	h := setupServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.engine.ServeHTTP(w, req)
	}()

	deadline := time.Now().Add(time.Second)
	for h.broker.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("subscriber never registered")
		}
		time.Sleep(time.Millisecond)
	}

	h.broker.Broadcast(events.NewCountdownStarted(5*time.Second, "test"))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !bytes.Contains([]byte(body), []byte("countdown_started")) {
		t.Fatalf("stream body missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestPhotoImageFileMissing(t *testing.T) {
	h := setupServer(t)

	saved, err := h.photos.Save(context.Background(), photo.SaveRequest{Bytes: []byte{0xFF, 0xD8, 0xFF}})
	if err != nil {
		t.Fatalf("save photo: %v", err)
	}
	if err := os.Remove(h.photos.Path(saved)); err != nil {
		t.Fatalf("remove image: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/photos/"+saved.Code+"/image", nil)
	h.engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
