// Package fleet exposes read-only listings of the fleet reference data via
// GET /api/fleet/drivers, /api/fleet/orders and /api/fleet/routes.
package fleet

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kilianp07/fleetdispatch/core/store"
)

// NewHandler returns an HTTP handler serving the fleet listings. The path
// segment after /api/fleet/ selects the collection.
func NewHandler(fleet store.FleetStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		collection := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/fleet/"), "/")
		var (
			payload any
			err     error
		)
		switch collection {
		case "drivers":
			payload, err = fleet.ListDrivers(r.Context())
		case "orders":
			payload, err = fleet.ListOrders(r.Context())
		case "routes":
			payload, err = fleet.ListRoutes(r.Context())
		case "assignments":
			payload, err = fleet.ListAssignments(r.Context())
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
