package ports

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Amund211/scriptcache/internal/app"
	"github.com/Amund211/scriptcache/internal/logging"
	"github.com/Amund211/scriptcache/internal/ratelimiting"
	"github.com/Amund211/scriptcache/internal/reporting"
)

type getAllScriptsResponse struct {
	Success bool             `json:"success"`
	Errors  []string         `json:"errors"`
	Scripts []scriptResponse `json:"scripts"`
}

// MakeGetAllScriptsHandler waits for every registered script. The response
// holds either the errors or the scripts of the batch notification.
func MakeGetAllScriptsHandler(
	waitForAllScripts app.WaitForAllScripts,
	ipRateLimiter ratelimiting.RequestRateLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("get_all_scripts"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("get_all_scripts"),
		NewRateLimitMiddleware("get_all_scripts", ipRateLimiter),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		records, errs, err := waitForAllScripts(ctx)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			writeError(ctx, w, http.StatusGatewayTimeout, "timed out waiting for scripts")
			return
		} else if err != nil {
			writeError(ctx, w, http.StatusInternalServerError, "internal server error")
			return
		}

		response := getAllScriptsResponse{
			Success: len(errs) == 0,
			Errors:  make([]string, 0, len(errs)),
			Scripts: make([]scriptResponse, 0, len(records)),
		}
		for _, err := range errs {
			response.Errors = append(response.Errors, err.Error())
		}
		for _, record := range records {
			response.Scripts = append(response.Scripts, scriptStateToResponse(app.ScriptStateFromRecord(record)))
		}

		writeJSON(ctx, w, http.StatusOK, response)
	}

	return middleware(handler)
}
