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
	"github.com/Amund211/scriptcache/internal/scriptcache"
)

type getScriptResponse struct {
	Success bool           `json:"success"`
	Script  scriptResponse `json:"script"`
}

func MakeGetScriptHandler(
	getScriptState app.GetScriptState,
	ipRateLimiter ratelimiting.RequestRateLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("get_script"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("get_script"),
		NewRateLimitMiddleware("get_script", ipRateLimiter),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := r.PathValue("name")
		wait := r.URL.Query().Get("wait") == "true"

		ctx = logging.AddMetaToContext(ctx,
			slog.String("name", name),
			slog.Bool("wait", wait),
		)
		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"name": name,
			},
		)

		if name == "" || len(name) > 200 {
			writeError(ctx, w, http.StatusBadRequest, "invalid script name")
			return
		}

		state, err := getScriptState(ctx, name, wait)
		if errors.Is(err, scriptcache.ErrScriptNotRegistered) {
			writeError(ctx, w, http.StatusNotFound, "not found")
			return
		} else if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			writeError(ctx, w, http.StatusGatewayTimeout, "timed out waiting for script")
			return
		} else if err != nil {
			writeError(ctx, w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(ctx, w, http.StatusOK, getScriptResponse{
			Success: true,
			Script:  scriptStateToResponse(state),
		})
	}

	return middleware(handler)
}
