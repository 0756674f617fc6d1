// Package allocation exposes the allocation engine over HTTP:
// POST /api/assign_orders runs an allocation, GET /api/optimized_schedule
// returns the current plan.
package allocation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	coreallocation "github.com/kilianp07/fleetdispatch/core/allocation"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// NewAssignHandler returns an HTTP handler running one allocation pass via
// POST /api/assign_orders. The request body is an optional JSON document of
// AllocationParams; an empty body runs with defaults.
func NewAssignHandler(engine *coreallocation.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var params model.AllocationParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		result, err := engine.AssignOrders(r.Context(), params)
		if err != nil {
			if errors.Is(err, coreallocation.ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewScheduleHandler returns an HTTP handler exposing the current schedule
// via GET /api/optimized_schedule.
func NewScheduleHandler(engine *coreallocation.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		schedule, err := engine.Schedule(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(schedule); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
