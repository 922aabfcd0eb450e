package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shopslot/booking-service/internal/booking"
	"github.com/shopslot/booking-service/internal/hold"
	redisclient "github.com/shopslot/booking-service/internal/redis"
)

func toReservationResponse(r *hold.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:              r.ID,
		ProviderID:      r.ProviderID,
		ShopID:          r.ShopID,
		ClientID:        r.ClientID,
		ServiceID:       r.ServiceID,
		Date:            r.Date,
		Time:            r.StartTime,
		DurationMinutes: r.DurationMinutes,
		Status:          string(r.Status),
		ExpiresAt:       r.ExpiresAt,
	}
}

func createReservationHandler(svc *booking.Service, holds *hold.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params, ok := parseBookingParams(w, req.ProviderID, req.ShopID, req.ClientID, req.ServiceID, req.Date, req.Time, req.DurationMinutes)
		if !ok {
			return
		}

		schedule, err := svc.ProviderSchedule(r.Context(), params.ProviderID)
		if err != nil {
			if errors.Is(err, booking.ErrProviderNotFound) {
				writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		res, err := holds.Reserve(r.Context(), params, *schedule)
		if err != nil {
			handleReserveError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(res))
	}
}

func confirmReservationHandler(holds *hold.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_reservation_id")
		if !ok {
			return
		}

		var req ConfirmReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actorID, err := uuid.Parse(req.ActorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
			return
		}

		payment := booking.PaymentDetails{
			TotalAmount:   req.TotalAmount,
			ServiceAmount: req.ServiceAmount,
			TipAmount:     req.TipAmount,
			PaymentMethod: req.PaymentMethod,
		}
		actor := booking.Actor{ID: actorID, Role: booking.RoleClient}

		appt, err := holds.Confirm(r.Context(), id, payment, actor)
		if err != nil {
			handleConfirmError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func releaseReservationHandler(holds *hold.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_reservation_id")
		if !ok {
			return
		}

		if !holds.Release(id) {
			writeError(w, http.StatusNotFound, "reservation_not_found", "no active reservation with that id")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listReservationsHandler(holds *hold.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := holds.Active()
		out := make([]ReservationResponse, 0, len(active))
		for i := range active {
			out = append(out, toReservationResponse(&active[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func requestAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequestAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params, ok := parseBookingParams(w, req.ProviderID, req.ShopID, req.ClientID, req.ServiceID, req.Date, req.Time, req.DurationMinutes)
		if !ok {
			return
		}

		actor := booking.Actor{ID: params.ClientID, Role: booking.RoleClient}

		appt, err := svc.RequestAppointment(r.Context(), params, actor)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, booking.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := intQuery(q.Get("limit"), 0)
		offset := intQuery(q.Get("offset"), 0)

		var (
			appts []booking.Appointment
			err   error
		)

		switch {
		case q.Get("client_id") != "":
			clientID, perr := uuid.Parse(q.Get("client_id"))
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
				return
			}
			appts, err = svc.ListByClient(r.Context(), clientID, limit, offset)
		case q.Get("provider_id") != "":
			providerID, perr := uuid.Parse(q.Get("provider_id"))
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
				return
			}
			appts, err = svc.ListByProvider(r.Context(), providerID, limit, offset)
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "client_id or provider_id is required")
			return
		}

		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func appointmentActionsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		role := booking.Role(r.URL.Query().Get("role"))
		if !role.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_role", "role must be client, provider, or owner")
			return
		}

		actions, err := svc.AvailableActionsFor(r.Context(), id, role)
		if err != nil {
			if errors.Is(err, booking.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		if actions == nil {
			actions = []booking.Action{}
		}
		writeJSON(w, http.StatusOK, actions)
	}
}

func updateStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actorID, err := uuid.Parse(req.ActorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
			return
		}
		role := booking.Role(req.ActorRole)
		if !role.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_role", "actor_role must be client, provider, or owner")
			return
		}
		newStatus := booking.Status(req.NewStatus)
		if !newStatus.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "new_status is not a recognised status")
			return
		}

		actor := booking.Actor{ID: actorID, Role: role}

		appt, err := svc.UpdateStatus(r.Context(), id, req.Action, newStatus, req.Reason, actor)
		if err != nil {
			handleStatusError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// Helpers

func parseIDParam(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseBookingParams(w http.ResponseWriter, providerID, shopID, clientID, serviceID, date, timeOfDay string, duration int) (booking.BookingParams, bool) {
	var params booking.BookingParams
	var err error

	if params.ProviderID, err = uuid.Parse(providerID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
		return booking.BookingParams{}, false
	}
	if params.ShopID, err = uuid.Parse(shopID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_shop_id", "shop_id must be a valid UUID")
		return booking.BookingParams{}, false
	}
	if params.ClientID, err = uuid.Parse(clientID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
		return booking.BookingParams{}, false
	}
	if params.ServiceID, err = uuid.Parse(serviceID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
		return booking.BookingParams{}, false
	}

	if duration <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be positive")
		return booking.BookingParams{}, false
	}

	params.Date = date
	params.StartTime = timeOfDay
	params.DurationMinutes = duration
	return params, true
}

func intQuery(s string, def int) int {
	if s == "" {
		return def
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Error mapping

func handleReserveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hold.ErrOutsideAvailability):
		writeError(w, http.StatusConflict, "outside_availability", err.Error())
	case errors.Is(err, hold.ErrSlotAlreadyHeld):
		writeError(w, http.StatusConflict, "slot_already_held", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}

func handleConfirmError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hold.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "reservation_not_found", err.Error())
	case errors.Is(err, hold.ErrReservationExpired):
		writeError(w, http.StatusConflict, "reservation_expired", err.Error())
	case errors.Is(err, booking.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, booking.ErrOutsideAvailability):
		writeError(w, http.StatusConflict, "outside_availability", err.Error())
	case errors.Is(err, booking.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleStatusError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
