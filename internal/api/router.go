package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicware/outpatient-queue/internal/booking"
	"github.com/clinicware/outpatient-queue/internal/clinic"
	"github.com/clinicware/outpatient-queue/internal/queue"
	"github.com/clinicware/outpatient-queue/internal/report"
	"github.com/clinicware/outpatient-queue/pkg/logging"
)

type RouterConfig struct {
	Clinic   *clinic.Service
	Booking  *booking.Service
	Queue    *queue.Service
	Reports  *report.Service
	Webhook  http.Handler
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   *logging.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Booking))
			r.Get("/today", listTodayAppointmentsHandler(cfg.Booking))
			r.Get("/{id}", getAppointmentHandler(cfg.Booking))
			r.Patch("/{id}/status", updateAppointmentStatusHandler(cfg.Booking))
		})

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", listSlotsHandler(cfg.Clinic))
			r.Post("/", createSlotHandler(cfg.Clinic))
			r.Post("/batch", createSlotsBatchHandler(cfg.Clinic))
			r.Get("/{id}", getSlotHandler(cfg.Clinic))
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/current", getQueueCurrentHandler(cfg.Queue))
			r.Post("/next", callNextHandler(cfg.Queue))
			r.Post("/recall", recallHandler(cfg.Queue))
		})

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", listDoctorsHandler(cfg.Clinic))
			r.Post("/", createDoctorHandler(cfg.Clinic))
			r.Get("/{id}", getDoctorHandler(cfg.Clinic))
			r.Put("/{id}", updateDoctorHandler(cfg.Clinic))
			r.Delete("/{id}", deleteDoctorHandler(cfg.Clinic))
		})

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", listPatientsHandler(cfg.Clinic))
			r.Get("/{id}", getPatientHandler(cfg.Clinic))
			r.Put("/{id}", updatePatientHandler(cfg.Clinic))
			r.Get("/{id}/appointments", listPatientAppointmentsHandler(cfg.Booking))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", dailyReportHandler(cfg.Reports))
			r.Get("/monthly", monthlyReportHandler(cfg.Reports))
		})

		r.Method(http.MethodPost, "/chat/webhook", cfg.Webhook)
	})

	return r
}
