package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"
	"go.uber.org/zap"

	"github.com/campus-tech-club/roster-api/internal/app/roster"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(r *http.Request, code string, message string, details map[string]any) ErrorResponse {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestId = nullable.NewNullableWithValue(rid)
	}
	return er
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, apiError(r, code, message, details))
}

// writeAppError maps application errors onto the JSON error envelope.
// Anything unrecognized is logged and reported as a 500.
func writeAppError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if ose := (*roster.OrderSaveError)(nil); errors.As(err, &ose) {
		ae := ose.AsError()
		log.Warn("order save incomplete",
			zap.String("collection", string(ose.Collection)),
			zap.Int("failed", ose.FailedCount),
			zap.Int("total", ose.Total),
			zap.Error(ose.Sample),
		)
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
		return
	}
	if ae := (*roster.Error)(nil); errors.As(err, &ae) {
		if ae.Status >= http.StatusInternalServerError {
			log.Error("request failed", zap.String("code", ae.Code), zap.Error(err))
		}
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
		return
	}
	log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
