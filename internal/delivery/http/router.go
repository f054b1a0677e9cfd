package http

import (
	"net/http"

	"healconnect/internal/delivery/http/handler"
	"healconnect/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
)

type Router struct {
	router              *mux.Router
	authHandler         *handler.AuthHandler
	patientHandler      *handler.PatientHandler
	appointmentHandler  *handler.AppointmentHandler
	prescriptionHandler *handler.PrescriptionHandler
	inventoryHandler    *handler.InventoryHandler
	auditLogHandler     *handler.AuditLogHandler
	authMiddleware      *middleware.AuthMiddleware
	corsMiddleware      *middleware.CORSMiddleware
}

func NewRouter(
	authHandler *handler.AuthHandler,
	patientHandler *handler.PatientHandler,
	appointmentHandler *handler.AppointmentHandler,
	prescriptionHandler *handler.PrescriptionHandler,
	inventoryHandler *handler.InventoryHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
) *Router {
	return &Router{
		router:              mux.NewRouter(),
		authHandler:         authHandler,
		patientHandler:      patientHandler,
		appointmentHandler:  appointmentHandler,
		prescriptionHandler: prescriptionHandler,
		inventoryHandler:    inventoryHandler,
		auditLogHandler:     auditLogHandler,
		authMiddleware:      authMiddleware,
		corsMiddleware:      corsMiddleware,
	}
}

func (r *Router) Setup() *mux.Router {
	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Auth routes (public)
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register/patient", r.authHandler.RegisterPatient).Methods(http.MethodPost)
	auth.HandleFunc("/login", r.authHandler.Login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh-token", r.authHandler.RefreshToken).Methods(http.MethodPost)

	// Everything below requires a valid access token
	protected := api.NewRoute().Subrouter()
	protected.Use(r.authMiddleware.Authenticate)

	protected.HandleFunc("/auth/logout", r.authHandler.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/auth/me", r.authHandler.GetCurrentUser).Methods(http.MethodGet)

	// Any signed-in role; usecases enforce per-record access
	protected.HandleFunc("/patients/{id}", r.patientHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/appointments/{id}", r.appointmentHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/practitioners/{practitionerId}/availability", r.appointmentHandler.Availability).Methods(http.MethodGet)
	protected.HandleFunc("/prescriptions/{id}", r.prescriptionHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/patients/{patientId}/prescriptions", r.prescriptionHandler.ListByPatient).Methods(http.MethodGet)
	protected.HandleFunc("/appointments", r.appointmentHandler.Book).Methods(http.MethodPost)

	// Patient routes
	patient := protected.PathPrefix("/me").Subrouter()
	patient.Use(middleware.RequirePatient)
	patient.HandleFunc("/patient", r.patientHandler.GetMine).Methods(http.MethodGet)
	patient.HandleFunc("/appointments", r.appointmentHandler.ListMine).Methods(http.MethodGet)
	patient.HandleFunc("/appointments/{id}/cancel", r.appointmentHandler.Cancel).Methods(http.MethodPost)

	// Clinical staff routes
	staff := protected.NewRoute().Subrouter()
	staff.Use(middleware.RequireAdminOrDoctor)
	staff.HandleFunc("/patients", r.patientHandler.Create).Methods(http.MethodPost)
	staff.HandleFunc("/patients", r.patientHandler.List).Methods(http.MethodGet)
	staff.HandleFunc("/patients/{id}", r.patientHandler.Update).Methods(http.MethodPut)
	staff.HandleFunc("/patients/{id}", r.patientHandler.Deactivate).Methods(http.MethodDelete)
	staff.HandleFunc("/appointments/{id}", r.appointmentHandler.Delete).Methods(http.MethodDelete)

	// Doctor routes
	doctor := protected.PathPrefix("/doctor").Subrouter()
	doctor.Use(middleware.RequireDoctor)
	doctor.HandleFunc("/patients/{id}/claim", r.patientHandler.Claim).Methods(http.MethodPost)
	doctor.HandleFunc("/appointments", r.appointmentHandler.ListForPractitioner).Methods(http.MethodGet)
	doctor.HandleFunc("/appointments/{id}/status", r.appointmentHandler.UpdateStatus).Methods(http.MethodPatch)

	doctor.HandleFunc("/prescriptions", r.prescriptionHandler.Issue).Methods(http.MethodPost)
	doctor.HandleFunc("/prescriptions/{id}/complete", r.prescriptionHandler.Complete).Methods(http.MethodPost)
	doctor.HandleFunc("/prescriptions/{id}/discontinue", r.prescriptionHandler.Discontinue).Methods(http.MethodPost)
	doctor.HandleFunc("/prescriptions/{id}", r.prescriptionHandler.Delete).Methods(http.MethodDelete)

	doctor.HandleFunc("/inventory", r.inventoryHandler.Create).Methods(http.MethodPost)
	doctor.HandleFunc("/inventory", r.inventoryHandler.List).Methods(http.MethodGet)
	doctor.HandleFunc("/inventory/{id}", r.inventoryHandler.Get).Methods(http.MethodGet)
	doctor.HandleFunc("/inventory/{id}", r.inventoryHandler.Update).Methods(http.MethodPut)
	doctor.HandleFunc("/inventory/{id}/adjust", r.inventoryHandler.Adjust).Methods(http.MethodPost)
	doctor.HandleFunc("/inventory/{id}", r.inventoryHandler.Delete).Methods(http.MethodDelete)

	// Admin routes
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/practitioners", r.authHandler.RegisterPractitioner).Methods(http.MethodPost)
	admin.HandleFunc("/patients/duplicates", r.patientHandler.Duplicates).Methods(http.MethodGet)
	admin.HandleFunc("/patients/merge", r.patientHandler.Merge).Methods(http.MethodPost)
	admin.HandleFunc("/patients/deduplicate", r.patientHandler.Deduplicate).Methods(http.MethodPost)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAllAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id}", r.auditLogHandler.GetAuditLog).Methods(http.MethodGet)

	// Add CORS middleware
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
