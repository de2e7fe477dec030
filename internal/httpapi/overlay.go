package httpapi

import (
	"embed"
	"net/http"
)

//go:embed static/scoreboard.html static/display.html
var overlayFS embed.FS

// registerOverlays serves the passive renderer documents. Each page attaches
// itself to a room over the subscription endpoint and re-renders from the
// broadcast stream; nothing here can mutate match state.
func (h *Handler) registerOverlays(mux *http.ServeMux) {
	mux.HandleFunc("GET /overlay/scoreboard", overlayPage("static/scoreboard.html"))
	mux.HandleFunc("GET /overlay/display", overlayPage("static/display.html"))
}

func overlayPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := overlayFS.ReadFile(name)
		if err != nil {
			http.Error(w, "overlay not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}
}
