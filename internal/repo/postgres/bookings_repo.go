package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voyago/flight-bookings/internal/domain"
)

// ErrDuplicateReference signals a booking_reference collision; the caller
// retries with a fresh reference.
var ErrDuplicateReference = errors.New("booking reference already exists")

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByReference(ctx context.Context, ref string) (*domain.Booking, error)
	List(ctx context.Context, limit, offset int) ([]domain.Booking, error)
	ListByStatus(ctx context.Context, status domain.BookingStatus, limit, offset int) ([]domain.Booking, error)
	MarkHeld(ctx context.Context, id int64, hold HoldUpdate) error
	MarkFailed(ctx context.Context, id int64, note string) error
	MarkIssued(ctx context.Context, id int64, pnr string, docs []domain.Document) error
	MarkCancelled(ctx context.Context, id int64, note string) error
	MarkExpired(ctx context.Context, id int64) error
	RecordPaymentFailure(ctx context.Context, id int64, reason string) (int, error)
	ForceStatus(ctx context.Context, id int64, status domain.BookingStatus, note string) error
	AppendAdminNote(ctx context.Context, id int64, note string) error
}

// HoldUpdate carries the remote identifiers persisted once the provider
// confirms a pay-later order.
type HoldUpdate struct {
	DuffelOrderID   string
	PNR             string
	BaseAmount      string
	Markup          string
	Documents       []domain.Document
	PaymentDeadline *time.Time
	PriceExpiry     *time.Time
	LiveMode        bool
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `id, booking_reference, offer_id, status,
contact, passengers, flight_details, pricing, payment_info,
duffel_order_id, pnr, documents,
retry_count, last_retry_at, admin_notes,
payment_deadline, price_expiry, is_live_mode, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.BookingReference, &b.OfferID, &b.Status,
		&b.Contact, &b.Passengers, &b.FlightDetails, &b.Pricing, &b.PaymentInfo,
		&b.DuffelOrderID, &b.PNR, &b.Documents,
		&b.RetryCount, &b.LastRetryAt, &b.AdminNotes,
		&b.PaymentDeadline, &b.PriceExpiry, &b.IsLiveMode,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	const q = `INSERT INTO bookings (
		booking_reference, offer_id, status,
		contact, passengers, flight_details, pricing, payment_info,
		documents, retry_count, admin_notes, is_live_mode
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'[]',0,'',$9)
	RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	created, err := scanBooking(r.pool.QueryRow(ctx, q,
		b.BookingReference, b.OfferID, b.Status,
		b.Contact, b.Passengers, b.FlightDetails, b.Pricing, b.PaymentInfo,
		b.IsLiveMode,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}
	return created, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) GetByReference(ctx context.Context, ref string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE booking_reference=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) List(ctx context.Context, limit, offset int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + bookingCols + ` FROM bookings ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *bookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE status=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepository) MarkHeld(ctx context.Context, id int64, hold HoldUpdate) error {
	const q = `UPDATE bookings SET
		status='held',
		duffel_order_id=$2, pnr=$3,
		pricing = pricing || jsonb_build_object('base_amount', $4::text, 'markup', $5::text),
		documents=$6, payment_deadline=$7, price_expiry=$8, is_live_mode=$9,
		updated_at=now()
	WHERE id=$1 AND status='processing'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id,
		hold.DuffelOrderID, hold.PNR, hold.BaseAmount, hold.Markup,
		hold.Documents, hold.PaymentDeadline, hold.PriceExpiry, hold.LiveMode,
	)
	return err
}

func (r *bookingRepository) MarkFailed(ctx context.Context, id int64, note string) error {
	const q = `UPDATE bookings SET status='failed',
		admin_notes = trim(both E'\n' from admin_notes || E'\n' || $2),
		updated_at=now()
	WHERE id=$1 AND status='processing'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, note)
	return err
}

func (r *bookingRepository) MarkIssued(ctx context.Context, id int64, pnr string, docs []domain.Document) error {
	const q = `UPDATE bookings SET status='issued',
		pnr = CASE WHEN $2 <> '' THEN $2 ELSE pnr END,
		documents=$3, retry_count=0, updated_at=now()
	WHERE id=$1 AND status IN ('processing','held')`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, pnr, docs)
	return err
}

func (r *bookingRepository) MarkCancelled(ctx context.Context, id int64, note string) error {
	const q = `UPDATE bookings SET status='cancelled',
		admin_notes = trim(both E'\n' from admin_notes || E'\n' || $2),
		updated_at=now()
	WHERE id=$1 AND status IN ('processing','held')`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, note)
	return err
}

func (r *bookingRepository) MarkExpired(ctx context.Context, id int64) error {
	const q = `UPDATE bookings SET status='expired', updated_at=now()
	WHERE id=$1 AND status='held'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *bookingRepository) RecordPaymentFailure(ctx context.Context, id int64, reason string) (int, error) {
	const q = `UPDATE bookings SET
		retry_count = retry_count + 1,
		last_retry_at = now(),
		admin_notes = trim(both E'\n' from admin_notes || E'\n' || $2),
		updated_at = now()
	WHERE id=$1
	RETURNING retry_count`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx, q, id, reason).Scan(&count)
	return count, err
}

// ForceStatus is the admin override path; it bypasses the forward-only
// state machine and always records the audit note.
func (r *bookingRepository) ForceStatus(ctx context.Context, id int64, status domain.BookingStatus, note string) error {
	const q = `UPDATE bookings SET status=$2,
		admin_notes = trim(both E'\n' from admin_notes || E'\n' || $3),
		updated_at=now()
	WHERE id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, status, note)
	return err
}

func (r *bookingRepository) AppendAdminNote(ctx context.Context, id int64, note string) error {
	const q = `UPDATE bookings SET
		admin_notes = trim(both E'\n' from admin_notes || E'\n' || $2),
		updated_at=now()
	WHERE id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, note)
	return err
}
