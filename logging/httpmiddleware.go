package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/apporbit/apporbit/errors"
)

const stackSize = 5

// Middleware returns HTTP middleware that creates a new logging scope for
// each request, recovers panics, and emits a single access log line when the
// handler completes. The scoped logger is available to handlers via
// logging.FromContext, and fields added with logging.Track will appear on the
// access log entry.
func Middleware(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := With(r.Context(), logger.Named(r.Method+" "+r.URL.Path))
			Track(ctx, "req.method", r.Method)
			Track(ctx, "req.path", r.URL.Path)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if p := recover(); p != nil {
					err := errors.Wrap(p, 3)
					Track(ctx, "error.panic", true)
					Track(ctx, "error.stack_trace", err.MinimalStack(0, stackSize))
					Errorw(ctx, "Request panicked", "error", err)
					if !rec.wrote {
						http.Error(w, "internal error", http.StatusInternalServerError)
					}
					return
				}
				Track(ctx, "resp.status", rec.status)
				Track(ctx, "resp.durationMs", time.Since(start).Milliseconds())
				if rec.status >= http.StatusInternalServerError {
					Error(ctx, "Request failed")
				} else {
					Info(ctx, "Request handled")
				}
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}

// TrackError adds structured error fields to the current logging scope. Used
// by handlers that translate errors into HTTP responses.
func TrackError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	Track(ctx, "error.http_status", errors.HTTPStatusCode(err))

	var coded *errors.Error
	if errors.As(err, &coded) {
		Track(ctx, "error.stack_trace", coded.MinimalStack(0, stackSize))
		Track(ctx, "error.original_type", coded.TypeName())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.wrote = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}
