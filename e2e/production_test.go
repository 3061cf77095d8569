package e2e

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/makeasinger/producer/internal/model"
)

const createBody = `{
	"artistName": "Neon Heights",
	"genre": "pop",
	"albumCount": 2,
	"notes": "late-night city themes"
}`

func createProduction(t *testing.T, ta *testApp) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/productions/", createBody)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	id, ok := result["productionId"].(string)
	if !ok || id == "" {
		t.Fatalf("no production id in response: %v", result)
	}
	return id
}

func TestProductionCreate_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/productions/", createBody)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["status"] != "planning" {
		t.Errorf("expected status planning, got %v", result["status"])
	}
}

func TestProductionCreate_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/productions/", createBody, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)

	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error object in response")
	}
	if errObj["code"] != "UNAUTHORIZED" {
		t.Errorf("expected error code UNAUTHORIZED, got %v", errObj["code"])
	}
}

func TestProductionCreate_ValidationError(t *testing.T) {
	ta := setupApp(t)

	// Missing artistName, albumCount out of range
	body := `{"genre": "pop", "albumCount": 99}`

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/productions/", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error object in response")
	}
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected error code VALIDATION_ERROR, got %v", errObj["code"])
	}
}

func TestProductionCreate_UnknownGenre(t *testing.T) {
	ta := setupApp(t)

	body := `{"artistName": "Nobody", "genre": "polka", "albumCount": 1}`
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/productions/", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestProductionList_OwnerScoped(t *testing.T) {
	ta := setupApp(t)
	createProduction(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/productions/", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}

func TestProductionDetail_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/productions/"+uuid.New().String(), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestProductionDetail_Success(t *testing.T) {
	ta := setupApp(t)
	id := createProduction(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/productions/"+id, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if _, ok := result["production"]; !ok {
		t.Error("detail response should embed the production tree")
	}
}

func TestProductionProgress(t *testing.T) {
	ta := setupApp(t)
	id := createProduction(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, fmt.Sprintf("/api/productions/%s/progress", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "planning" {
		t.Errorf("expected planning, got %v", result["status"])
	}
}

func TestProductionApprove_ConflictBeforePlanned(t *testing.T) {
	ta := setupApp(t)
	id := createProduction(t, ta)

	// Still in planning (no worker runs in tests), so approve must 409.
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, fmt.Sprintf("/api/productions/%s/approve", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestProductionApprove_FromPlanned(t *testing.T) {
	ta := setupApp(t)
	id := createProduction(t, ta)

	ok, err := ta.store.TransitionProduction(id, model.ProductionStatusPlanning, model.ProductionStatusPlanned, nil)
	if err != nil || !ok {
		t.Fatalf("seed planned status: ok=%v err=%v", ok, err)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, fmt.Sprintf("/api/productions/%s/approve", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["applied"] != true || result["status"] != "in_progress" {
		t.Errorf("unexpected lifecycle response: %v", result)
	}
}

func TestProductionCancel_ThenConflict(t *testing.T) {
	ta := setupApp(t)
	id := createProduction(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, fmt.Sprintf("/api/productions/%s/cancel", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "failed" {
		t.Errorf("cancel should fail the production, got %v", result["status"])
	}

	// Second cancel is a conflict, not an error.
	resp, err = doAuthRequest(t, ta.app, http.MethodPost, fmt.Sprintf("/api/productions/%s/cancel", id), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestCallback_UnknownJobAccepted(t *testing.T) {
	ta := setupApp(t)

	body := `{"jobId": "no-such-job", "status": "completed"}`
	resp, err := doRequest(ta.app, http.MethodPost, "/callbacks/suno", body, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}

func TestCallback_InvalidStatusRejected(t *testing.T) {
	ta := setupApp(t)

	body := `{"jobId": "some-job", "status": "exploded"}`
	resp, err := doRequest(ta.app, http.MethodPost, "/callbacks/suno", body, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}
