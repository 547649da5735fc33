package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sailsteel/order-desk/internal/postgres"
)

// Repo is the Postgres engine. Decimals travel as text and are cast to NUMERIC server side.
type Repo struct {
	*Initializer
	DB *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	r := &Repo{DB: db}
	r.Initializer = NewInitializer(func(ctx context.Context) error {
		return postgres.Migrate(ctx, db)
	})
	return r
}

const stockColumns = `id, grade, thickness::text, width::text, length::text, finish, quality, edge, quantity::text, created_at`

func (r *Repo) FindStock(ctx context.Context, spec Specification) ([]StockRecord, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+stockColumns+` FROM stock_data
		WHERE grade=$1 AND thickness=$2::numeric AND width=$3::numeric AND length=$4::numeric
		  AND finish=$5 AND quality=$6 AND edge=$7
		ORDER BY quantity DESC, created_at ASC, id ASC`,
		spec.Grade, spec.Thickness.String(), spec.Width.String(), spec.Length.String(),
		spec.Finish, spec.Quality, spec.Edge)
	if err != nil {
		return nil, fmt.Errorf("%w: find stock: %w", ErrPersistence, err)
	}
	defer rows.Close()

	out := []StockRecord{}
	for rows.Next() {
		rec, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan stock: %w", ErrPersistence, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: find stock: %w", ErrPersistence, err)
	}
	return out, nil
}

// UpsertStock replaces the quantity of the record with the same specification, or inserts one.
func (r *Repo) UpsertStock(ctx context.Context, rec StockRecord) (StockRecord, error) {
	if rec.Quantity.IsNegative() {
		return StockRecord{}, fmt.Errorf("%w: negative quantity", ErrValidation)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO stock_data (id, grade, thickness, width, length, finish, quality, edge, quantity)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9::numeric)
		ON CONFLICT (grade, thickness, width, length, finish, quality, edge)
		DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING `+stockColumns,
		rec.ID, rec.Grade, rec.Thickness.String(), rec.Width.String(), rec.Length.String(),
		rec.Finish, rec.Quality, rec.Edge, rec.Quantity.String())
	out, err := scanStock(row)
	if err != nil {
		return StockRecord{}, fmt.Errorf("%w: upsert stock: %w", ErrPersistence, err)
	}
	return out, nil
}

func (r *Repo) CreateOrder(ctx context.Context, o Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, o.Status)
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, grade, thickness, width, length, finish, quality, edge,
			customer, required_quantity, delivery_days, status,
			b_quantity, ssp_ro_id, release_date, mou, remarks, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9,
			$10, $11::numeric, $12, $13, $14, $15, $16, $17, $18, $19)`,
		o.ID, o.UserID, o.Grade, o.Thickness.String(), o.Width.String(), o.Length.String(),
		o.Finish, o.Quality, o.Edge,
		o.Customer, o.RequiredQuantity.String(), o.DeliveryDays, string(o.Status),
		o.BQuantity, o.SSPROID, o.ReleaseDate, o.MOU, o.Remarks, o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %w: %s", ErrPersistence, ErrDuplicateID, o.ID)
		}
		return fmt.Errorf("%w: insert order: %w", ErrPersistence, err)
	}
	return nil
}

const orderColumns = `id, user_id, grade, thickness::text, width::text, length::text, finish, quality, edge,
	customer, required_quantity::text, delivery_days, status,
	b_quantity, ssp_ro_id, release_date, mou, remarks, created_at`

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Order{}, fmt.Errorf("%w: get order: %w", ErrPersistence, err)
	}
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %w", ErrPersistence, err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan order: %w", ErrPersistence, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list orders: %w", ErrPersistence, err)
	}
	return out, nil
}

func scanStock(row pgx.Row) (StockRecord, error) {
	var (
		rec                StockRecord
		thk, wid, lng, qty string
	)
	if err := row.Scan(&rec.ID, &rec.Grade, &thk, &wid, &lng, &rec.Finish, &rec.Quality, &rec.Edge, &qty, &rec.CreatedAt); err != nil {
		return StockRecord{}, err
	}
	var err error
	if rec.Specification, err = withDimensions(rec.Specification, thk, wid, lng); err != nil {
		return StockRecord{}, err
	}
	if rec.Quantity, err = decimal.NewFromString(qty); err != nil {
		return StockRecord{}, fmt.Errorf("quantity: %w", err)
	}
	return rec, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                  Order
		thk, wid, lng, qty string
		status             string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Grade, &thk, &wid, &lng, &o.Finish, &o.Quality, &o.Edge,
		&o.Customer, &qty, &o.DeliveryDays, &status,
		&o.BQuantity, &o.SSPROID, &o.ReleaseDate, &o.MOU, &o.Remarks, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	if o.Status = Status(status); !o.Status.Valid() {
		return Order{}, fmt.Errorf("unknown status %q", status)
	}
	if o.Specification, err = withDimensions(o.Specification, thk, wid, lng); err != nil {
		return Order{}, err
	}
	if o.RequiredQuantity, err = decimal.NewFromString(qty); err != nil {
		return Order{}, fmt.Errorf("required_quantity: %w", err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

func withDimensions(s Specification, thk, wid, lng string) (Specification, error) {
	var err error
	if s.Thickness, err = decimal.NewFromString(thk); err != nil {
		return s, fmt.Errorf("thickness: %w", err)
	}
	if s.Width, err = decimal.NewFromString(wid); err != nil {
		return s, fmt.Errorf("width: %w", err)
	}
	if s.Length, err = decimal.NewFromString(lng); err != nil {
		return s, fmt.Errorf("length: %w", err)
	}
	return s, nil
}
