package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"pulseboard/internal/board"
	"pulseboard/internal/tracker"
	"pulseboard/internal/tracker/store"
	"pulseboard/pkg/config"
	"pulseboard/pkg/logger"
	"pulseboard/pkg/redis"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "json"})
}

func testCache() *redis.Cache {
	client, _ := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	return redis.NewCache(client, "test")
}

func publishedBoard() *board.Publisher {
	p := board.NewPublisher()
	p.Publish(&tracker.LeaderboardSnapshot{
		Entries: []tracker.LeaderboardEntry{
			{Rank: 1, Username: "ethereum", Followers: 3400000, Score: 1000, Status: tracker.StatusGrowing},
			{Rank: 2, Username: "bitcoin", Followers: 2000000, Score: 800, Status: tracker.StatusNeutral},
		},
		Alerts: []tracker.Alert{
			{Username: "ethereum", Window: "5m", Percent: 12.5, Message: "ethereum grew 12.5% in 5m"},
		},
		GeneratedAt: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Tick:        7,
	})
	return p
}

func TestGetLeaderboard(t *testing.T) {
	h := NewLeaderboardHandler(publishedBoard(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var snap tracker.LeaderboardSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(snap.Entries))
	}
	if snap.Entries[0].Username != "ethereum" || snap.Entries[0].Rank != 1 {
		t.Errorf("Unexpected first entry: %+v", snap.Entries[0])
	}
}

func TestGetLeaderboardBeforeFirstPublish(t *testing.T) {
	h := NewLeaderboardHandler(board.NewPublisher(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", rec.Code)
	}
}

func TestGetAlerts(t *testing.T) {
	h := NewLeaderboardHandler(publishedBoard(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	rec := httptest.NewRecorder()
	h.GetAlerts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var body struct {
		Alerts []tracker.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].Message != "ethereum grew 12.5% in 5m" {
		t.Errorf("Unexpected alerts: %+v", body.Alerts)
	}
}

func historyRouter(h *HistoryHandler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/accounts/{username}/history", h.GetHistory).Methods("GET")
	return r
}

func TestGetHistory(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		err := s.Append(ctx, tracker.AccountSnapshot{
			Username:   "ethereum",
			Followers:  int64(1000 + i),
			ObservedAt: now.Add(-time.Duration(3-i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	router := historyRouter(NewHistoryHandler(s, testCache(), testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/ethereum/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Username string         `json:"username"`
		Points   []HistoryPoint `json:"points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if body.Username != "ethereum" {
		t.Errorf("Username = %q", body.Username)
	}
	if len(body.Points) != 4 {
		t.Fatalf("Expected 4 points, got %d", len(body.Points))
	}
	for i := 1; i < len(body.Points); i++ {
		if body.Points[i].Timestamp <= body.Points[i-1].Timestamp {
			t.Error("Points not in ascending time order")
		}
	}
}

func TestGetHistoryWithRange(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		err := s.Append(ctx, tracker.AccountSnapshot{
			Username:   "bitcoin",
			Followers:  int64(i),
			ObservedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	router := historyRouter(NewHistoryHandler(s, testCache(), testLogger()))

	url := fmt.Sprintf("/api/accounts/bitcoin/history?from=%s&to=%s",
		base.Add(2*time.Hour).Format(time.RFC3339),
		base.Add(5*time.Hour).Format(time.RFC3339))
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var body struct {
		Points []HistoryPoint `json:"points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(body.Points) != 4 {
		t.Errorf("Expected 4 points in range, got %d", len(body.Points))
	}
}

func TestGetHistoryUnknownAccount(t *testing.T) {
	router := historyRouter(NewHistoryHandler(store.NewMemoryStore(), testCache(), testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/nobody/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
}

func TestGetHistoryBadTimestamp(t *testing.T) {
	router := historyRouter(NewHistoryHandler(store.NewMemoryStore(), testCache(), testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/ethereum/history?from=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetHealth(t *testing.T) {
	h := NewHealthHandler(nil, publishedBoard())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.GetHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["accounts"] != float64(2) {
		t.Errorf("accounts = %v", body["accounts"])
	}
}
