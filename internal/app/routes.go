package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klokku/sharecal/internal/rest"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	r.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Events
	r.HandleFunc("/api/events", deps.EventHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/events", deps.EventHandler.ListEvents).Methods("GET")
	r.HandleFunc("/api/events/batch", deps.EventHandler.BatchCreateEvents).Methods("POST")
	r.HandleFunc("/api/events/{eventId}", deps.EventHandler.GetEvent).Methods("GET")
	r.HandleFunc("/api/events/{eventId}", deps.EventHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/events/{eventId}", deps.EventHandler.DeleteEvent).Methods("DELETE")
	r.HandleFunc("/api/events/{eventId}/ics", deps.EventHandler.ExportEvent).Methods("GET")
	r.HandleFunc("/api/conflicts/check", deps.EventHandler.CheckConflicts).Methods("POST")

	// Versions
	r.HandleFunc("/api/events/{eventId}/versions", deps.EventHandler.ListVersions).Methods("GET")
	r.HandleFunc("/api/events/{eventId}/versions/{version}", deps.EventHandler.GetVersion).Methods("GET")
	r.HandleFunc("/api/events/{eventId}/versions/{from}/diff/{to}", deps.EventHandler.DiffVersions).Methods("GET")
	r.HandleFunc("/api/events/{eventId}/changelog", deps.EventHandler.Changelog).Methods("GET")
	r.HandleFunc("/api/events/{eventId}/at", deps.EventHandler.VersionAt).Queries("at", "{at}").Methods("GET")
	r.HandleFunc("/api/events/{eventId}/rollback/{version}", deps.EventHandler.RollbackEvent).Methods("POST")

	// Permissions
	r.HandleFunc("/api/events/{eventId}/share", deps.EventHandler.ShareEvent).Methods("POST")
	r.HandleFunc("/api/events/{eventId}/permissions", deps.EventHandler.ListPermissions).Methods("GET")
	r.HandleFunc("/api/events/{eventId}/permissions/{userId}", deps.EventHandler.RevokePermission).Methods("DELETE")

	// User management
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/user", deps.UserHandler.GetAvailableUsers).Methods("GET")
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	if deps.AuditHandler != nil {
		r.HandleFunc("/api/user/current/audit", deps.AuditHandler.ListCurrentUserEntries).Methods("GET")
	}
}
