package server

import (
	"encoding/json"
	"net/http"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/logging"
)

// jsonHandler is a regular HTTP handler that returns a value to encode as
// JSON, or an error whose HTTP status code and public message form the
// response.
type jsonHandler func(req *http.Request) (any, error)

func handler(fn jsonHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		b, err := json.Marshal(resp)
		if err != nil {
			writeError(w, r, errors.Wrap(err, 0))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	})
}

// writeError renders err as a JSON error body. Internal detail stays in the
// logs; the response carries only the error's public message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	logf := logging.Warnw
	if status >= 500 {
		logf = logging.Errorw
	}
	logf(r.Context(), "request failed", "error", err,
		"req.method", r.Method, "req.url", r.URL.String())

	b, ferr := json.Marshal(api.ErrorResponse{Error: errors.PublicMessage(err)})
	if ferr != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// decode reads the request body into v, rejecting unknown fields so clients
// find out about typos instead of silently losing data.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.WrapPrefix(err, "invalid request body", 0).
			WithHTTPStatusCode(http.StatusBadRequest).
			WithPublicMessage("Request body could not be parsed")
	}
	return nil
}
