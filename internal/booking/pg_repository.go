package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopslot/booking-service/internal/availability"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, provider_id, client_id, service_id, shop_id,
	date, start_time, duration_minutes, status, status_history,
	cancellation_reason, no_show_reason, reschedule_reason,
	payment, created_at, updated_at
`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var history []byte
	var payment []byte
	var cancellation, noShow, reschedule *string

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.ClientID,
		&a.ServiceID,
		&a.ShopID,
		&a.Date,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Status,
		&history,
		&cancellation,
		&noShow,
		&reschedule,
		&payment,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.StatusHistory); err != nil {
			return nil, fmt.Errorf("decode status history: %w", err)
		}
	}
	if len(payment) > 0 {
		var p PaymentDetails
		if err := json.Unmarshal(payment, &p); err != nil {
			return nil, fmt.Errorf("decode payment: %w", err)
		}
		a.Payment = &p
	}
	if cancellation != nil {
		a.CancellationReason = *cancellation
	}
	if noShow != nil {
		a.NoShowReason = *noShow
	}
	if reschedule != nil {
		a.RescheduleReason = *reschedule
	}

	return &a, nil
}

func encodeAppointment(a *Appointment) (history, payment []byte, err error) {
	history, err = json.Marshal(a.StatusHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("encode status history: %w", err)
	}
	if a.Payment != nil {
		payment, err = json.Marshal(a.Payment)
		if err != nil {
			return nil, nil, fmt.Errorf("encode payment: %w", err)
		}
	}
	return history, payment, nil
}

func nullableReason(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	history, payment, err := encodeAppointment(a)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, provider_id, client_id, service_id, shop_id,
			date, start_time, duration_minutes, status, status_history,
			cancellation_reason, no_show_reason, reschedule_reason,
			payment, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+appointmentColumns+`
	`,
		a.ID, a.ProviderID, a.ClientID, a.ServiceID, a.ShopID,
		a.Date, a.StartTime, a.DurationMinutes, a.Status, history,
		nullableReason(a.CancellationReason), nullableReason(a.NoShowReason), nullableReason(a.RescheduleReason),
		payment,
	)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	history, payment, err := encodeAppointment(a)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    status_history = $3,
		    cancellation_reason = $4,
		    no_show_reason = $5,
		    reschedule_reason = $6,
		    payment = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`,
		a.ID, a.Status, history,
		nullableReason(a.CancellationReason), nullableReason(a.NoShowReason), nullableReason(a.RescheduleReason),
		payment,
	)

	return scanAppointment(row)
}

func (r *PgRepository) ListBookedForProviderDate(ctx context.Context, providerID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND date = $2
		  AND status IN ('requested', 'confirmed', 'in-progress')
	`, providerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1
		ORDER BY date DESC, start_time DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		ORDER BY date DESC, start_time DESC
		LIMIT $2 OFFSET $3
	`, providerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetProviderSchedule(ctx context.Context, providerID uuid.UUID) (*availability.WeeklySchedule, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT schedule
		FROM provider_availability
		WHERE provider_id = $1
	`, providerID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	var ws availability.WeeklySchedule
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("decode weekly schedule: %w", err)
	}
	return &ws, nil
}

func (r *PgRepository) InsertNotification(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, recipient_role, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, n.AppointmentID, n.RecipientRole, n.EventType, n.Payload, nullableTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
