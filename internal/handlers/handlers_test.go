package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"medtracker/internal/auth"
	"medtracker/internal/database"
	"medtracker/internal/middleware"
	"medtracker/internal/models"
	"medtracker/internal/repository"
	"medtracker/internal/schedule"
	"medtracker/internal/services"

	"github.com/go-chi/chi/v5"
)

func setupTestServer(t *testing.T) (*httptest.Server, *database.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret-key", time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	classifier := schedule.NewClassifier()
	processor := schedule.NewProcessor(
		repository.NewReminderRepository(db),
		repository.NewDoseLogRepository(db),
		classifier,
	)
	scheduleService := services.NewScheduleService(db, classifier)

	r := chi.NewRouter()
	r.Post("/api/auth/login", HandleLogin(db, jwtManager))
	r.Post("/api/auth/register", HandleRegister(db))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)
		r.Get("/api/auth/me", HandleGetCurrentUser(db))
		r.Delete("/api/auth/me", HandleDeactivateAccount(db))
		r.Route("/api/medications", func(r chi.Router) {
			r.Get("/", HandleGetMedications(db))
			r.Post("/", HandleCreateMedication(db))
			r.Get("/alerts", HandleGetStockAlerts(db))
			r.Get("/{id}", HandleGetMedication(db))
			r.Post("/{id}/restock", HandleRestockMedication(db))
			r.Post("/{id}/adjust", HandleAdjustMedicationStock(db))
			r.Get("/{id}/inventory", HandleGetInventoryHistory(db))
		})
		r.Route("/api/reminders", func(r chi.Router) {
			r.Post("/", HandleCreateReminder(db))
			r.Get("/{id}", HandleGetReminder(db))
			r.Delete("/{id}", HandleDeleteReminder(db))
			r.Get("/{id}/status", HandleGetReminderStatus(db, scheduleService))
			r.Patch("/{id}/status", HandleDoseAction(db, processor))
		})
		r.Get("/api/schedule", HandleGetSchedule(scheduleService))
		r.Get("/api/adherence", HandleGetAdherence(scheduleService))
		r.Get("/api/export/csv", HandleExportCSV(scheduleService))
		r.Get("/api/audit", HandleGetAuditLog(db))
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, db
}

// registerAndLogin creates a user through the API and returns a bearer token.
func registerAndLogin(t *testing.T, server *httptest.Server, username string) string {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"password":"Str0ngPass!word"}`, username)
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Register request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Register: expected status 201, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/api/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Login: expected status 200, got %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}
	if authResp.Token == "" {
		t.Fatal("Login returned no token")
	}
	return authResp.Token
}

func doJSON(t *testing.T, server *httptest.Server, token, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func createMedication(t *testing.T, server *httptest.Server, token string, remaining float64) *models.Medication {
	t.Helper()

	resp := doJSON(t, server, token, http.MethodPost, "/api/medications", map[string]interface{}{
		"name":                "Amoxicillin",
		"unit":                "tablet",
		"total_quantity":      30.0,
		"remaining_quantity":  remaining,
		"low_stock_threshold": 5.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create medication: expected status 201, got %d", resp.StatusCode)
	}

	var med models.Medication
	decodeBody(t, resp, &med)
	return &med
}

func createReminder(t *testing.T, server *httptest.Server, token string, medicationID int64) *models.Reminder {
	t.Helper()

	resp := doJSON(t, server, token, http.MethodPost, "/api/reminders", map[string]interface{}{
		"medication_id":   medicationID,
		"recurrence_mode": "daily",
		"start_date":      "2026-03-01",
		"end_date":        "2026-03-31",
		"slots": []map[string]interface{}{
			{"label": "morning", "clock_time": "08:00", "dosage_amount": 2},
			{"label": "evening", "clock_time": "20:00", "dosage_amount": 1},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create reminder: expected status 201, got %d", resp.StatusCode)
	}

	var rem models.Reminder
	decodeBody(t, resp, &rem)
	return &rem
}

func TestAuthFlow(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "alice")

	resp := doJSON(t, server, token, http.MethodGet, "/api/auth/me", nil)
	var user UserResponse
	decodeBody(t, resp, &user)

	if user.Username != "alice" {
		t.Errorf("Expected username alice, got %s", user.Username)
	}
	if user.Role != "patient" {
		t.Errorf("Expected default role patient, got %s", user.Role)
	}
}

func TestAuthRequired(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/medications")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", resp.StatusCode)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	server, _ := setupTestServer(t)
	registerAndLogin(t, server, "bob")

	body := `{"username":"bob","password":"Str0ngPass!word"}`
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Register request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate username, got %d", resp.StatusCode)
	}
}

func TestCreateReminderValidation(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "carol")
	med := createMedication(t, server, token, 30)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "no slots",
			body: map[string]interface{}{
				"medication_id":   med.ID,
				"recurrence_mode": "daily",
				"start_date":      "2026-03-01",
				"end_date":        "2026-03-31",
				"slots":           []map[string]interface{}{},
			},
		},
		{
			name: "start after end",
			body: map[string]interface{}{
				"medication_id":   med.ID,
				"recurrence_mode": "daily",
				"start_date":      "2026-03-31",
				"end_date":        "2026-03-01",
				"slots": []map[string]interface{}{
					{"label": "morning", "clock_time": "08:00", "dosage_amount": 1},
				},
			},
		},
		{
			name: "bad clock time",
			body: map[string]interface{}{
				"medication_id":   med.ID,
				"recurrence_mode": "daily",
				"start_date":      "2026-03-01",
				"end_date":        "2026-03-31",
				"slots": []map[string]interface{}{
					{"label": "morning", "clock_time": "8 AM", "dosage_amount": 1},
				},
			},
		},
		{
			name: "weekly without weekdays",
			body: map[string]interface{}{
				"medication_id":   med.ID,
				"recurrence_mode": "weekly",
				"start_date":      "2026-03-01",
				"end_date":        "2026-03-31",
				"slots": []map[string]interface{}{
					{"label": "morning", "clock_time": "08:00", "dosage_amount": 1},
				},
			},
		},
		{
			name: "duplicate slot label",
			body: map[string]interface{}{
				"medication_id":   med.ID,
				"recurrence_mode": "daily",
				"start_date":      "2026-03-01",
				"end_date":        "2026-03-31",
				"slots": []map[string]interface{}{
					{"label": "morning", "clock_time": "08:00", "dosage_amount": 1},
					{"label": "morning", "clock_time": "09:00", "dosage_amount": 1},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, server, token, http.MethodPost, "/api/reminders", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestDoseActionTakeDecrementsStock(t *testing.T) {
	server, db := setupTestServer(t)
	token := registerAndLogin(t, server, "dave")
	med := createMedication(t, server, token, 30)
	rem := createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodPatch, fmt.Sprintf("/api/reminders/%d/status", rem.ID), map[string]interface{}{
		"action":     "take",
		"slot_label": "morning",
		"date":       "2026-03-10",
		"time":       "08:15",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var occ models.DoseOccurrence
	decodeBody(t, resp, &occ)
	if occ.Status != models.StatusOnTime {
		t.Errorf("Expected status on_time for take within the window, got %s", occ.Status)
	}

	updated, err := repository.NewMedicationRepository(db).GetByID(med.ID)
	if err != nil {
		t.Fatalf("Failed to reload medication: %v", err)
	}
	if updated.RemainingQuantity != 28 {
		t.Errorf("Expected remaining 28 after a 2-unit dose, got %g", updated.RemainingQuantity)
	}
}

func TestDoseActionDuplicateTakeIsNoOp(t *testing.T) {
	server, db := setupTestServer(t)
	token := registerAndLogin(t, server, "erin")
	med := createMedication(t, server, token, 30)
	rem := createReminder(t, server, token, med.ID)

	body := map[string]interface{}{
		"action":     "take",
		"slot_label": "morning",
		"date":       "2026-03-10",
		"time":       "08:15",
	}

	resp := doJSON(t, server, token, http.MethodPatch, fmt.Sprintf("/api/reminders/%d/status", rem.ID), body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("First take: expected status 200, got %d", resp.StatusCode)
	}

	// Same action again must not consume stock a second time
	body["time"] = "08:20"
	resp = doJSON(t, server, token, http.MethodPatch, fmt.Sprintf("/api/reminders/%d/status", rem.ID), body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Repeat take: expected status 200, got %d", resp.StatusCode)
	}

	updated, err := repository.NewMedicationRepository(db).GetByID(med.ID)
	if err != nil {
		t.Fatalf("Failed to reload medication: %v", err)
	}
	if updated.RemainingQuantity != 28 {
		t.Errorf("Expected remaining 28 after duplicate take, got %g", updated.RemainingQuantity)
	}
}

func TestDoseActionConflictOnFinalDose(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "frank")
	med := createMedication(t, server, token, 30)
	rem := createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodPatch, fmt.Sprintf("/api/reminders/%d/status", rem.ID), map[string]interface{}{
		"action":     "take",
		"slot_label": "morning",
		"date":       "2026-03-10",
		"time":       "08:15",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Take: expected status 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, token, http.MethodPatch, fmt.Sprintf("/api/reminders/%d/status", rem.ID), map[string]interface{}{
		"action":     "skip",
		"slot_label": "morning",
		"date":       "2026-03-10",
		"time":       "08:30",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected status 409 for conflicting action, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Message != "this dose can no longer be updated" {
		t.Errorf("Unexpected conflict message: %q", errResp.Message)
	}
}

func TestDoseActionUnknownSlot(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "grace")
	med := createMedication(t, server, token, 30)
	rem := createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodPatch, fmt.Sprintf("/api/reminders/%d/status", rem.ID), map[string]interface{}{
		"action":     "take",
		"slot_label": "afternoon",
		"date":       "2026-03-10",
	})
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422 for unscheduled slot, got %d", resp.StatusCode)
	}
}

func TestScheduleDayView(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "heidi")
	med := createMedication(t, server, token, 30)
	createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodGet, "/api/schedule?date=2026-03-10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var view struct {
		Date        string                  `json:"date"`
		Occurrences []models.DoseOccurrence `json:"occurrences"`
	}
	decodeBody(t, resp, &view)

	if view.Date != "2026-03-10" {
		t.Errorf("Expected date 2026-03-10, got %s", view.Date)
	}
	if len(view.Occurrences) != 2 {
		t.Fatalf("Expected 2 occurrences, got %d", len(view.Occurrences))
	}
	if view.Occurrences[0].SlotLabel != models.SlotMorning {
		t.Errorf("Expected morning slot first, got %s", view.Occurrences[0].SlotLabel)
	}
}

func TestScheduleOutsideRangeIsEmpty(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "ivan")
	med := createMedication(t, server, token, 30)
	createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodGet, "/api/schedule?date=2026-04-01", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var view struct {
		Occurrences []models.DoseOccurrence `json:"occurrences"`
	}
	decodeBody(t, resp, &view)

	if len(view.Occurrences) != 0 {
		t.Errorf("Expected no occurrences outside the date range, got %d", len(view.Occurrences))
	}
}

func TestMedicationOwnership(t *testing.T) {
	server, _ := setupTestServer(t)
	ownerToken := registerAndLogin(t, server, "judy")
	otherToken := registerAndLogin(t, server, "mallory")
	med := createMedication(t, server, ownerToken, 30)

	resp := doJSON(t, server, otherToken, http.MethodGet, fmt.Sprintf("/api/medications/%d", med.ID), nil)
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for another user's medication, got %d", resp.StatusCode)
	}
}

func TestRestockEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "nina")
	med := createMedication(t, server, token, 3)

	resp := doJSON(t, server, token, http.MethodPost, fmt.Sprintf("/api/medications/%d/restock", med.ID), map[string]interface{}{
		"amount": 10.0,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var updated models.Medication
	decodeBody(t, resp, &updated)
	if updated.RemainingQuantity != 13 {
		t.Errorf("Expected remaining 13 after restock, got %g", updated.RemainingQuantity)
	}

	resp = doJSON(t, server, token, http.MethodPost, fmt.Sprintf("/api/medications/%d/restock", med.ID), map[string]interface{}{
		"amount": -5.0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for negative restock, got %d", resp.StatusCode)
	}
}

func TestStockAlerts(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "oscar")
	low := createMedication(t, server, token, 3)
	createMedication(t, server, token, 30)

	resp := doJSON(t, server, token, http.MethodGet, "/api/medications/alerts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var alerts []*models.Medication
	decodeBody(t, resp, &alerts)

	if len(alerts) != 1 {
		t.Fatalf("Expected 1 low stock alert, got %d", len(alerts))
	}
	if alerts[0].ID != low.ID {
		t.Errorf("Expected alert for medication %d, got %d", low.ID, alerts[0].ID)
	}
}

func TestAdherenceReport(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "peggy")
	med := createMedication(t, server, token, 30)
	rem := createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodPatch, fmt.Sprintf("/api/reminders/%d/status", rem.ID), map[string]interface{}{
		"action":     "take",
		"slot_label": "morning",
		"date":       "2026-03-10",
		"time":       "08:10",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Take: expected status 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, token, http.MethodGet, "/api/adherence?start_date=2026-03-10&end_date=2026-03-10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var report services.AdherenceReport
	decodeBody(t, resp, &report)

	if report.Total != 2 {
		t.Errorf("Expected 2 occurrences in report, got %d", report.Total)
	}
	if report.Counts[models.StatusOnTime] != 1 {
		t.Errorf("Expected 1 on_time dose, got %d", report.Counts[models.StatusOnTime])
	}
}

func TestExportCSV(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "quentin")
	med := createMedication(t, server, token, 30)
	createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodGet, "/api/export/csv?start_date=2026-03-10&end_date=2026-03-10", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected Content-Type text/csv, got %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "adherence_2026-03-10_2026-03-10.csv") {
		t.Errorf("Unexpected Content-Disposition: %s", cd)
	}
}

func TestAdjustStockEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "rita")
	med := createMedication(t, server, token, 30)

	resp := doJSON(t, server, token, http.MethodPost, fmt.Sprintf("/api/medications/%d/adjust", med.ID), map[string]interface{}{
		"change_amount": -12.5,
		"notes":         "spilled half a bottle",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var updated models.Medication
	decodeBody(t, resp, &updated)
	if updated.RemainingQuantity != 17.5 {
		t.Errorf("Expected remaining 17.5 after adjustment, got %g", updated.RemainingQuantity)
	}

	// A correction larger than the stock clamps at zero instead of failing
	resp = doJSON(t, server, token, http.MethodPost, fmt.Sprintf("/api/medications/%d/adjust", med.ID), map[string]interface{}{
		"change_amount": -100.0,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 for oversized adjustment, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &updated)
	if updated.RemainingQuantity != 0 {
		t.Errorf("Expected remaining 0 after oversized adjustment, got %g", updated.RemainingQuantity)
	}

	resp = doJSON(t, server, token, http.MethodPost, fmt.Sprintf("/api/medications/%d/adjust", med.ID), map[string]interface{}{
		"change_amount": 0.0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for zero adjustment, got %d", resp.StatusCode)
	}
}

func TestAdjustmentRecordedInInventoryHistory(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "sybil")
	med := createMedication(t, server, token, 30)

	resp := doJSON(t, server, token, http.MethodPost, fmt.Sprintf("/api/medications/%d/adjust", med.ID), map[string]interface{}{
		"change_amount": -5.0,
		"notes":         "recount",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Adjust: expected status 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, token, http.MethodGet, fmt.Sprintf("/api/medications/%d/inventory", med.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var history []*models.InventoryHistory
	decodeBody(t, resp, &history)
	if len(history) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(history))
	}
	if history[0].Reason != "adjustment" {
		t.Errorf("Expected reason adjustment, got %s", history[0].Reason)
	}
	if history[0].QuantityAfter != 25 {
		t.Errorf("Expected quantity_after 25, got %g", history[0].QuantityAfter)
	}
}

func TestAuditTrailEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "trent")

	resp := doJSON(t, server, token, http.MethodGet, "/api/audit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var logs []*models.AuditLog
	decodeBody(t, resp, &logs)
	if len(logs) == 0 {
		t.Fatal("Expected audit entries after registration and login")
	}

	found := false
	for _, entry := range logs {
		if entry.Action == "login_success" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a login_success entry in the audit trail")
	}
}

func TestDeleteReminderDeactivates(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "ursula")
	med := createMedication(t, server, token, 30)
	rem := createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodDelete, fmt.Sprintf("/api/reminders/%d", rem.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Delete: expected status 200, got %d", resp.StatusCode)
	}

	// The reminder survives for history but stops producing occurrences
	resp = doJSON(t, server, token, http.MethodGet, fmt.Sprintf("/api/reminders/%d", rem.ID), nil)
	var reloaded models.Reminder
	decodeBody(t, resp, &reloaded)
	if reloaded.IsActive {
		t.Error("Expected reminder to be inactive after delete")
	}

	resp = doJSON(t, server, token, http.MethodGet, "/api/schedule?date=2026-03-10", nil)
	var view struct {
		Occurrences []models.DoseOccurrence `json:"occurrences"`
	}
	decodeBody(t, resp, &view)
	if len(view.Occurrences) != 0 {
		t.Errorf("Expected no occurrences from a deactivated reminder, got %d", len(view.Occurrences))
	}
}

func TestDeleteReminderPurge(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "victor")
	med := createMedication(t, server, token, 30)
	rem := createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodDelete, fmt.Sprintf("/api/reminders/%d?purge=true", rem.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Purge: expected status 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, token, http.MethodGet, fmt.Sprintf("/api/reminders/%d", rem.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 after purge, got %d", resp.StatusCode)
	}
}

func TestDeactivateAccountBlocksLogin(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "wanda")

	resp := doJSON(t, server, token, http.MethodDelete, "/api/auth/me", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Deactivate: expected status 200, got %d", resp.StatusCode)
	}

	body := `{"username":"wanda","password":"Str0ngPass!word"}`
	loginResp, err := http.Post(server.URL+"/api/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Login request failed: %v", err)
	}
	loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for deactivated account, got %d", loginResp.StatusCode)
	}
}

func TestReminderStatusNextDate(t *testing.T) {
	server, _ := setupTestServer(t)
	token := registerAndLogin(t, server, "xavier")
	med := createMedication(t, server, token, 30)
	rem := createReminder(t, server, token, med.ID)

	resp := doJSON(t, server, token, http.MethodGet, fmt.Sprintf("/api/reminders/%d/status?date=2026-03-10", rem.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var view struct {
		NextDate *string `json:"next_date"`
	}
	decodeBody(t, resp, &view)
	if view.NextDate == nil || *view.NextDate != "2026-03-11" {
		t.Errorf("Expected next_date 2026-03-11, got %v", view.NextDate)
	}

	// On the last scheduled day there is nothing further
	resp = doJSON(t, server, token, http.MethodGet, fmt.Sprintf("/api/reminders/%d/status?date=2026-03-31", rem.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &view)
	if view.NextDate != nil {
		t.Errorf("Expected no next_date past the end of the schedule, got %v", *view.NextDate)
	}
}
