package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/store"
)

// ExampleProgressHandler_ListRuns shows how to serve the run listing endpoint.
func ExampleProgressHandler_ListRuns() {
	repo := &mockRunRepo{
		runs: []store.Run{{
			ID:        uuid.MustParse("00000000-0000-0000-0000-0000000000aa"),
			Status:    store.RunRunning,
			StartedAt: time.Unix(0, 0),
			Total:     960,
		}},
	}
	handler := NewProgressHandler(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/progress/runs?limit=1", nil)
	rec := httptest.NewRecorder()
	handler.ListRuns(rec, req)

	var payload struct {
		Runs []map[string]any `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		panic(err)
	}
	fmt.Printf("returned runs: %d, total: %v\n", len(payload.Runs), payload.Runs[0]["total"])
	// Output:
	// returned runs: 1, total: 960
}
