package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicware/outpatient-queue/internal/clinic"
)

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.Local)
}

func listSlotsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		doctorID, err := uuid.Parse(q.Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var slots []clinic.TimeSlot

		switch {
		case q.Get("date") != "":
			date, err := parseDate(q.Get("date"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			slots, err = svc.ListSlots(r.Context(), doctorID, date)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
		case q.Get("start_date") != "" && q.Get("end_date") != "":
			from, err := parseDate(q.Get("start_date"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
				return
			}
			to, err := parseDate(q.Get("end_date"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
				return
			}
			slots, err = svc.ListSlotsInRange(r.Context(), doctorID, from, to)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
		default:
			writeError(w, http.StatusBadRequest, "missing_date",
				"doctor_id with date, or doctor_id with start_date and end_date are required")
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createSlotHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newSlot, err := toNewSlot(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
			return
		}

		slot, err := svc.CreateSlot(r.Context(), newSlot)
		if err != nil {
			if errors.Is(err, clinic.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func createSlotsBatchHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newSlots := make([]clinic.NewSlot, 0, len(req.Slots))
		for _, s := range req.Slots {
			ns, err := toNewSlot(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
				return
			}
			newSlots = append(newSlots, ns)
		}

		created, err := svc.CreateSlots(r.Context(), newSlots)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, BatchSlotsResponse{Created: created})
	}
}

func getSlotHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetSlot(r.Context(), id)
		if err != nil {
			if errors.Is(err, clinic.ErrSlotNotFound) {
				writeError(w, http.StatusNotFound, "slot_not_found", "slot not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := struct {
			SlotResponse
			Doctor DoctorResponse `json:"doctor"`
		}{
			SlotResponse: toSlotResponse(&detail.TimeSlot),
			Doctor:       toDoctorResponse(detail.Doctor),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func toNewSlot(req CreateSlotRequest) (clinic.NewSlot, error) {
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return clinic.NewSlot{}, errors.New("doctor_id must be a valid UUID")
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return clinic.NewSlot{}, errors.New("date must be YYYY-MM-DD")
	}

	if req.StartTime == "" || req.EndTime == "" {
		return clinic.NewSlot{}, errors.New("start_time and end_time are required")
	}

	return clinic.NewSlot{
		DoctorID:    doctorID,
		SlotDate:    date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxCapacity: req.MaxCapacity,
	}, nil
}
