package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

// Orders репозиторий заказов; позиции хранятся в JSONB вместе с заказом
type Orders struct {
	db *DB
}

func NewOrders(db *DB) *Orders { return &Orders{db: db} }

var _ repository.OrderRepository = (*Orders)(nil)

const orderColumns = `id, order_number, customer_id, pharmacy_id, items, total_amount, status, notes,
	cancellation_reason, created_at, confirmed_at, ready_at, completed_at, cancelled_at, stock_released_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		items  []byte
		status string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.PharmacyID, &items, &o.TotalAmount, &status, &o.Notes,
		&o.CancellationReason, &o.CreatedAt, &o.ConfirmedAt, &o.ReadyAt, &o.CompletedAt, &o.CancelledAt,
		&o.StockReleasedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, errors.Wrap(err, "decode order items")
	}
	return o, nil
}

func (r *Orders) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return storageErr("orders.create", err)
	}
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	_, err = r.db.conn(ctx).Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.OrderNumber, o.CustomerID, o.PharmacyID, items, o.TotalAmount, string(o.Status), o.Notes,
		o.CancellationReason, o.CreatedAt, o.ConfirmedAt, o.ReadyAt, o.CompletedAt, o.CancelledAt,
		o.StockReleasedAt, o.UpdatedAt,
	)
	if err != nil {
		return storageErr("orders.create", err)
	}
	return nil
}

func (r *Orders) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := scanOrder(r.db.conn(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFound("order", id)
	}
	if err != nil {
		return nil, storageErr("orders.get", err)
	}
	return &o, nil
}

func (r *Orders) UpdateByID(ctx context.Context, id uuid.UUID, fn func(o *domain.Order) error) (*domain.Order, error) {
	var out domain.Order
	err := r.db.atomically(ctx, "orders.update", func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFound("order", id)
		}
		if err != nil {
			return storageErr("orders.lock", err)
		}
		orig := o
		if err := fn(&o); err != nil {
			return err
		}
		o.ID, o.OrderNumber, o.CreatedAt = orig.ID, orig.OrderNumber, orig.CreatedAt
		items, err := json.Marshal(o.Items)
		if err != nil {
			return storageErr("orders.update", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET items = $2, total_amount = $3, status = $4, notes = $5, cancellation_reason = $6,
			    confirmed_at = $7, ready_at = $8, completed_at = $9, cancelled_at = $10,
			    stock_released_at = $11, updated_at = $12
			WHERE id = $1`,
			o.ID, items, o.TotalAmount, string(o.Status), o.Notes, o.CancellationReason,
			o.ConfirmedAt, o.ReadyAt, o.CompletedAt, o.CancelledAt, o.StockReleasedAt, o.UpdatedAt,
		)
		if err != nil {
			return storageErr("orders.update", err)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Orders) List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::uuid IS NULL OR customer_id = $1)
		  AND ($2::uuid IS NULL OR pharmacy_id = $2)
		  AND ($3::text = '' OR status = $3::text)
		ORDER BY created_at DESC, id DESC`,
		f.CustomerID, f.PharmacyID, string(f.Status),
	)
	if err != nil {
		return nil, storageErr("orders.list", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storageErr("orders.list", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("orders.list", err)
	}
	return out, nil
}
