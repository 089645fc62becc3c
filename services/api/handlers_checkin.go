package api

import (
	"errors"
	"io"
	"net/http"

	"inventoryd/services/inventory"
)

func (a *API) handleCheckin(w http.ResponseWriter, r *http.Request) {
	if !hasJSONContentType(r) {
		a.deps.Metrics.observeCheckin("unsupported_media")
		a.writeError(w, r, inventory.NewError(inventory.KindUnsupportedMedia,
			errors.New("content type "+r.Header.Get("Content-Type"))))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			a.deps.Metrics.observeRejection("size")
			a.deps.Metrics.observeCheckin("too_large")
			a.writeError(w, r, inventory.NewError(inventory.KindTooLarge, err))
			return
		}
		a.deps.Metrics.observeCheckin("malformed")
		a.writeError(w, r, inventory.NewError(inventory.KindMalformedSyntax, err))
		return
	}

	if _, err := a.deps.Ingestor.Ingest(r.Context(), body); err != nil {
		a.deps.Metrics.observeCheckin(outcomeOf(err))
		a.writeError(w, r, err)
		return
	}

	a.deps.Metrics.observeCheckin("recorded")
	w.WriteHeader(http.StatusOK)
}

func outcomeOf(err error) string {
	switch inventory.KindOf(err) {
	case inventory.KindMalformedSyntax, inventory.KindMalformedShape:
		return "malformed"
	case inventory.KindInvalid:
		return "invalid"
	default:
		return "storage_error"
	}
}
