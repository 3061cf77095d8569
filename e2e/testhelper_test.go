package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/producer/internal/auth"
	"github.com/makeasinger/producer/internal/client"
	"github.com/makeasinger/producer/internal/db"
	"github.com/makeasinger/producer/internal/genre"
	"github.com/makeasinger/producer/internal/handler"
	"github.com/makeasinger/producer/internal/middleware"
	"github.com/makeasinger/producer/internal/service"
	"github.com/makeasinger/producer/internal/store"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *store.Store
}

// setupApp wires a Fiber app like main.go but on a throwaway database,
// with mock vendor clients and no queue. Pipeline tasks simply do not
// run, which is fine for API-surface tests.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	gdb, err := db.Connect(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(gdb)

	validate := validator.New()
	genres := genre.NewProvider()

	audio := client.NewMockAudioGenerator()

	tracker := service.NewTracker(st, audio, nil)
	productionService := service.NewProductionService(st, genres, nil, nil, 3)

	productionHandler := handler.NewProductionHandler(productionService, validate)
	callbackHandler := handler.NewCallbackHandler(tracker, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Post("/callbacks/suno", callbackHandler.Generation)

	api := app.Group("/api", authMiddleware.Authenticate())
	productions := api.Group("/productions")
	productions.Post("/", productionHandler.Create)
	productions.Get("/", productionHandler.List)
	productions.Get("/:id", productionHandler.Detail)
	productions.Get("/:id/progress", productionHandler.Progress)
	productions.Post("/:id/approve", productionHandler.Approve)
	productions.Post("/:id/cancel", productionHandler.Cancel)
	productions.Post("/:id/replan", productionHandler.Replan)
	productions.Post("/:id/retry", productionHandler.Retry)

	return &testApp{app: app, store: st}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.GenerateToken("test-user-123", "test@example.com", testJWTSecret)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
