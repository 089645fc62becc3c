package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inventoryd/services/inventory"
)

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	machines, err := a.deps.Reader.Machines(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	page, err := a.deps.Renderer.Render("index.html.tmpl", struct {
		Machines []inventory.State
	}{Machines: machines})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	respondHTML(w, http.StatusOK, page)
}

func (a *API) handleDevice(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	device, err := a.deps.Reader.Device(r.Context(), serial)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	page, err := a.deps.Renderer.Render("device.html.tmpl", device)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	respondHTML(w, http.StatusOK, page)
}
