package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"inventoryd/pkg/admission"
	"inventoryd/services/inventory"
)

type errorSpec struct {
	status  int
	message string
	level   zerolog.Level
}

// errorSpecs is the only place failures become HTTP statuses. Messages are
// generic; details go to the log.
var errorSpecs = map[inventory.Kind]errorSpec{
	inventory.KindMalformedSyntax:  {http.StatusBadRequest, "Invalid JSON", zerolog.InfoLevel},
	inventory.KindMalformedShape:   {http.StatusUnprocessableEntity, "Invalid request body", zerolog.InfoLevel},
	inventory.KindUnsupportedMedia: {http.StatusUnsupportedMediaType, "Expected application/json", zerolog.InfoLevel},
	inventory.KindInvalid:          {http.StatusBadRequest, "Invalid input data", zerolog.WarnLevel},
	inventory.KindTooLarge:         {http.StatusRequestEntityTooLarge, "Payload too large", zerolog.WarnLevel},
	inventory.KindRateLimited:      {http.StatusTooManyRequests, "Too many requests", zerolog.WarnLevel},
	inventory.KindNotFound:         {http.StatusNotFound, "Not found", zerolog.DebugLevel},
	inventory.KindStorage:          {http.StatusInternalServerError, "Internal server error", zerolog.ErrorLevel},
}

// classify maps any handler or admission error onto a Kind.
func classify(err error) inventory.Kind {
	var rl *admission.RateLimitedError
	var tooLarge *admission.TooLargeError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &rl):
		return inventory.KindRateLimited
	case errors.As(err, &tooLarge), errors.As(err, &maxBytes):
		return inventory.KindTooLarge
	default:
		return inventory.KindOf(err)
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := classify(err)
	spec, ok := errorSpecs[kind]
	if !ok {
		spec = errorSpecs[inventory.KindStorage]
	}

	var rl *admission.RateLimitedError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
	}

	evt := hlog.FromRequest(r).WithLevel(spec.level).
		Err(err).
		Str("kind", kind.String()).
		Int("status", spec.status)
	if v := inventory.ViolationsOf(err); len(v) > 0 {
		fields := make([]string, len(v))
		for i, viol := range v {
			fields[i] = viol.String()
		}
		evt = evt.Strs("violations", fields)
	}
	evt.Msg("request failed")

	respondError(w, spec.status, spec.message)
}
