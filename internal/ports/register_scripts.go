package ports

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/scriptcache/internal/app"
	"github.com/Amund211/scriptcache/internal/domain"
	"github.com/Amund211/scriptcache/internal/logging"
	"github.com/Amund211/scriptcache/internal/ratelimiting"
	"github.com/Amund211/scriptcache/internal/reporting"
)

const maxEntriesPerRequest = 100

var errInvalidScripts = errors.New("invalid scripts")

// scripts is either a list of {"name", "url"} objects, kept in order, or an
// object mapping name to url, registered in name order
type registerScriptsRequest struct {
	Scripts json.RawMessage `json:"scripts"`
}

type scriptEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func parseScripts(raw json.RawMessage) ([]domain.Entry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []domain.Entry{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	switch raw[0] {
	case '[':
		var scripts []scriptEntry
		if err := decoder.Decode(&scripts); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidScripts, err)
		}
		entries := make([]domain.Entry, 0, len(scripts))
		for _, script := range scripts {
			entries = append(entries, domain.Entry{Name: script.Name, URL: script.URL})
		}
		return entries, nil
	case '{':
		var scripts map[string]string
		if err := decoder.Decode(&scripts); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidScripts, err)
		}
		return domain.EntriesFromMap(scripts), nil
	default:
		return nil, fmt.Errorf("%w: expected a list or an object", errInvalidScripts)
	}
}

type registrationResponse struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

type registerScriptsResponse struct {
	Success       bool                   `json:"success"`
	Registrations []registrationResponse `json:"registrations"`
}

func MakeRegisterScriptsHandler(
	registerScripts app.RegisterScripts,
	ipRateLimiter ratelimiting.RequestRateLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("register_scripts"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("register_scripts"),
		NewRateLimitMiddleware("register_scripts", ipRateLimiter),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request registerScriptsRequest
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&request); err != nil {
			writeError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}

		entries, err := parseScripts(request.Scripts)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}

		if len(entries) > maxEntriesPerRequest {
			writeError(ctx, w, http.StatusBadRequest, fmt.Sprintf("too many scripts (max %d)", maxEntriesPerRequest))
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.Int("scriptCount", len(entries)))

		registrations, err := registerScripts(ctx, entries)
		if errors.Is(err, domain.ErrInvalidEntry) {
			writeError(ctx, w, http.StatusBadRequest, err.Error())
			return
		} else if err != nil {
			// NOTE: RegisterScripts implementations handle their own error reporting
			writeError(ctx, w, http.StatusInternalServerError, "internal server error")
			return
		}

		response := registerScriptsResponse{
			Success:       true,
			Registrations: make([]registrationResponse, 0, len(registrations)),
		}
		for _, registration := range registrations {
			response.Registrations = append(response.Registrations, registrationResponse{
				Name:   registration.Name,
				URL:    registration.URL,
				Status: string(registration.Status),
			})
		}

		writeJSON(ctx, w, http.StatusOK, response)
	}

	return middleware(handler)
}
