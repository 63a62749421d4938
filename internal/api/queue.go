package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/outpatient-queue/internal/queue"
)

func getQueueCurrentHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, date, ok := queueParams(w, r.URL.Query().Get("doctor_id"), r.URL.Query().Get("date"))
		if !ok {
			return
		}

		current, err := svc.GetCurrent(r.Context(), doctorID, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, QueueResponse{CurrentNumber: current})
	}
}

func callNextHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueueCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, date, ok := queueParams(w, req.DoctorID, req.Date)
		if !ok {
			return
		}

		res, err := svc.CallNext(r.Context(), doctorID, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toQueueResponse(res))
	}
}

func recallHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueueCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, date, ok := queueParams(w, req.DoctorID, req.Date)
		if !ok {
			return
		}

		res, err := svc.Recall(r.Context(), doctorID, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toQueueResponse(res))
	}
}

func queueParams(w http.ResponseWriter, doctorIDRaw, dateRaw string) (uuid.UUID, time.Time, bool) {
	doctorID, err := uuid.Parse(doctorIDRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return uuid.Nil, time.Time{}, false
	}

	date, err := parseDate(dateRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return uuid.Nil, time.Time{}, false
	}

	return doctorID, date, true
}
