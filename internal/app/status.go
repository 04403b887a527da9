package app

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vk/gridrun/internal/dag"
)

// instanceStatus is the wire shape of one job instance on the status
// endpoint.
type instanceStatus struct {
	Job     string `json:"job"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// statusHandler serves the live outcome of every instance in the graph.
// Outcomes are read atomically, so serving during a run is safe.
func (a *App) statusHandler(graph *dag.Graph) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.logger.Debug("Status endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)

		statuses := make([]instanceStatus, 0, len(graph.Nodes))
		for _, n := range graph.Ordered() {
			s := instanceStatus{Job: n.ID(), Outcome: n.Outcome().String()}
			if n.Outcome().Terminal() && n.Err != nil {
				s.Error = n.Err.Error()
			}
			statuses = append(statuses, s)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statuses); err != nil {
			a.logger.Error("Failed to encode status response", "error", err)
		}
	}
}

// healthHandler reports process liveness.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startStatusServer runs the HTTP status server for the duration of the
// process.
func (a *App) startStatusServer(port int, graph *dag.Graph) {
	a.logger.Debug("Configuring status server.")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler(graph))

	addr := fmt.Sprintf(":%d", port)

	go func() {
		a.logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			a.logger.Error("Status server failed", "error", err)
		}
	}()
}
