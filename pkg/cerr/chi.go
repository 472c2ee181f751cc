package cerr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/feeta/feeta/pkg/clog"
)

type responseReceiverKey struct{}

type responseReceiver struct {
	status   int
	response any
	err      error
}

func contextWithResponseReceiver(ctx context.Context, rr *responseReceiver) context.Context {
	return context.WithValue(ctx, responseReceiverKey{}, rr)
}

func responseReceiverFromContext(ctx context.Context) *responseReceiver {
	if rr, ok := ctx.Value(responseReceiverKey{}).(*responseReceiver); ok {
		return rr
	}
	return nil
}

func SetJSONResponse(ctx context.Context, response any) {
	SetJSONResponseWithStatus(ctx, http.StatusOK, response)
}

func SetJSONResponseWithStatus(ctx context.Context, status int, response any) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.status = status
		rr.response = response
	}
}

func SetJSONError(ctx context.Context, err error) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.err = err
	}
}

func SetNewJSONError(ctx context.Context, code Code, msg string, err error) {
	SetJSONError(ctx, NewError(code, msg, err))
}

// NewJSONResponseChiMiddleware lets handlers hand back a value or an error
// through the request context; the middleware writes either as JSON once the
// handler returns. Errors are rendered in the `{"error": "..."}` shape the
// dashboard API uses.
func NewJSONResponseChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rr := &responseReceiver{status: http.StatusOK}
			ctx := contextWithResponseReceiver(r.Context(), rr)
			next.ServeHTTP(rw, r.WithContext(ctx))
			writeResponse(ctx, rw, rr)
		})
	}
}

type httpError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeResponse(ctx context.Context, rw http.ResponseWriter, rr *responseReceiver) {
	if rr.err == nil {
		if rr.response == nil {
			return
		}
		writeJSON(ctx, rw, rr.status, rr.response)
		return
	}
	if errors.Is(rr.err, context.Canceled) {
		writeJSONError(ctx, rw, NewError(Canceled, "connection closed", rr.err))
		return
	}

	clog.AddError(ctx, rr.err)
	var cErr *Error
	if errors.As(rr.err, &cErr) {
		if cErr.Stack != "" {
			clog.AddStack(ctx, cErr.Stack)
		}
		writeJSONError(ctx, rw, cErr)
		return
	}
	writeJSONError(ctx, rw, NewError(Unknown, "unknown error", rr.err))
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, response any) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(response); err != nil {
		writeJSONError(ctx, rw, NewError(Internal, "server error", err))
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	if _, err := rw.Write(buf.Bytes()); err != nil {
		clog.AddError(ctx, NewError(Internal, "server error", err))
	}
}

func writeJSONError(ctx context.Context, rw http.ResponseWriter, origErr *Error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(httpError{Error: origErr.Msg, Code: origErr.Code.String()}); err != nil {
		buf = bytes.NewBufferString(`{"error":"server error","code":"internal"}`)
		origErr.Err = errors.Join(origErr.Err, err)
		clog.AddError(ctx, origErr)
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(origErr.Code.HTTPCode())
	if _, err := rw.Write(buf.Bytes()); err != nil {
		origErr.Err = errors.Join(origErr.Err, err)
		clog.AddError(ctx, origErr)
	}
}
