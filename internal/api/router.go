// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/api/handlers"
	"github.com/stayflow/backend/internal/api/middleware"
	"github.com/stayflow/backend/internal/feed"
	"github.com/stayflow/backend/internal/realtime"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/workflow"
)

// Deps carries the services the router wires into handlers.
type Deps struct {
	DB          *storage.DB
	Bookings    *storage.BookingRepository
	Jobs        *storage.JobRepository
	Events      *storage.EventRepository
	Conflicts   *storage.ConflictRepository
	SyncConfigs *storage.SyncConfigRepository
	Workflow    *workflow.Workflow
	Engine      *feed.Engine
	Scheduler   *feed.Scheduler
	Hub         *realtime.Hub
	StaticDir   string
	Log         *zap.Logger
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging(d.Log))
	r.Use(middleware.ErrorRecovery(d.Log))

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(d.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(d.DB, d.Hub, d.SyncConfigs, d.Scheduler)).Methods("GET")

	// Live calendar stream
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(d.Hub, d.Log)).Methods("GET")

	// Booking endpoints
	api.HandleFunc("/bookings", handlers.ListBookings(d.Bookings)).Methods("GET")
	api.HandleFunc("/bookings", handlers.CreateBooking(d.Bookings)).Methods("POST")
	api.HandleFunc("/bookings/{id}", handlers.GetBooking(d.Bookings)).Methods("GET")
	api.HandleFunc("/bookings/{id}/status", handlers.UpdateBookingStatus(d.Bookings, d.Workflow)).Methods("POST")

	// Job endpoints
	api.HandleFunc("/jobs", handlers.ListJobs(d.Jobs)).Methods("GET")
	api.HandleFunc("/jobs", handlers.CreateJob(d.Jobs)).Methods("POST")
	api.HandleFunc("/jobs/{id}", handlers.GetJob(d.Jobs)).Methods("GET")
	api.HandleFunc("/jobs/{id}/status", handlers.UpdateJobStatus(d.Jobs, d.Workflow)).Methods("POST")

	// Transition replay for at-least-once delivery
	api.HandleFunc("/transitions", handlers.ApplyTransition(d.Workflow)).Methods("POST")

	// Calendar snapshot
	api.HandleFunc("/events", handlers.ListEvents(d.Events)).Methods("GET")

	// Conflict endpoints
	api.HandleFunc("/conflicts", handlers.ListConflicts(d.Conflicts)).Methods("GET")
	api.HandleFunc("/conflicts/{id}/resolve", handlers.ResolveConflict(d.Conflicts)).Methods("POST")

	// Sync endpoints
	api.HandleFunc("/sync", handlers.SyncNow(d.SyncConfigs, d.Engine)).Methods("POST")
	api.HandleFunc("/sync-configs", handlers.ListSyncConfigs(d.SyncConfigs)).Methods("GET")
	api.HandleFunc("/sync-configs", handlers.CreateSyncConfig(d.SyncConfigs, d.Scheduler)).Methods("POST")
	api.HandleFunc("/sync-configs/{id}", handlers.GetSyncConfig(d.SyncConfigs)).Methods("GET")
	api.HandleFunc("/sync-configs/{id}", handlers.UpdateSyncConfig(d.SyncConfigs, d.Scheduler)).Methods("PUT")
	api.HandleFunc("/sync-configs/{id}", handlers.DeleteSyncConfig(d.SyncConfigs, d.Scheduler)).Methods("DELETE")
	api.HandleFunc("/sync-configs/{id}/sync", handlers.TriggerSyncConfig(d.SyncConfigs, d.Scheduler)).Methods("POST")

	// Serve static frontend files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(d.StaticDir)))

	return r
}
