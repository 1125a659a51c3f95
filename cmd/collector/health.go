package main

import (
	"net/http"

	json "github.com/marketprism/ingestion-fabric/encoding/json"
	"github.com/marketprism/ingestion-fabric/engine"
)

type healthResponse struct {
	Books    []engine.BookHealth    `json:"books"`
	Adapters []engine.AdapterHealth `json:"adapters"`
	Drops    map[string]int         `json:"drops"`
}

// healthHandler serves the Supervisor's point-in-time health snapshot
// (per-book state, per-adapter connectivity, drop counters by reason).
func healthHandler(sup *engine.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		books, adapters, drops := sup.Health()
		body, err := json.Marshal(healthResponse{Books: books, Adapters: adapters, Drops: drops})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
