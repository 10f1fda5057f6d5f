package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// ErrorPayload maps err onto its status and public envelope. Untyped errors
// become internal errors and never leak their message.
func ErrorPayload(err error) (int, types.ErrorEnvelope) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	message := meta.PublicMessage
	if typed.Code() != pkgerrors.CodeInternal && typed.Message() != "" {
		message = typed.Message()
	}
	var details any
	if meta.DetailsAllowed {
		details = typed.Details()
	}
	return meta.HTTPStatus, types.NewErrorEnvelope(string(typed.Code()), message, details)
}

// WriteError renders err as an error envelope. Client errors log at warn and
// server errors at error.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	status, payload := ErrorPayload(err)
	if logg != nil {
		logError(ctx, logg, status, err)
	}
	writeJSON(w, status, payload)
}

func logError(ctx context.Context, logg *logger.Logger, status int, err error) {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"status":          status,
		"error_code":      dump.Code,
		"error_chain":     dump.Chain,
		"error_retryable": dump.Retryable,
	}
	if dump.UpstreamStatus != 0 {
		fields["upstream_status"] = dump.UpstreamStatus
	}
	if dump.DB != nil {
		fields["db"] = dump.DB
	}
	if typed := pkgerrors.As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			if step, ok := details["step"]; ok {
				fields["step"] = step
			}
		}
	}
	ctx = logg.WithFields(ctx, fields)
	if status < http.StatusInternalServerError {
		logg.Warn(ctx, "request.rejected: "+dump.TopMessage)
		return
	}
	logg.Error(ctx, "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"encode response","err":"%v"}`, err)
	}
}
