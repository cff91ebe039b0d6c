package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Amund211/scriptcache/internal/app"
	"github.com/Amund211/scriptcache/internal/reporting"
)

type scriptResponse struct {
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Loaded    bool       `json:"loaded"`
	Rejected  bool       `json:"rejected"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	SettledAt *time.Time `json:"settledAt,omitempty"`
}

func scriptStateToResponse(state app.ScriptState) scriptResponse {
	response := scriptResponse{
		Name:      state.Name,
		URL:       state.URL,
		Loaded:    state.Loaded,
		Rejected:  state.Rejected,
		StartedAt: state.StartedAt,
	}
	if state.Err != nil {
		response.Error = state.Err.Error()
	}
	if !state.SettledAt.IsZero() {
		settledAt := state.SettledAt
		response.SettledAt = &settledAt
	}
	return response
}

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, response any) {
	data, err := json.Marshal(response)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, cause string) {
	writeJSON(ctx, w, statusCode, errorResponse{Success: false, Cause: cause})
}
