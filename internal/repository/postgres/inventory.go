package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

// Inventory складские записи; изменения идут под блокировкой строки (SELECT ... FOR UPDATE)
type Inventory struct {
	db *DB
}

func NewInventory(db *DB) *Inventory { return &Inventory{db: db} }

var _ repository.InventoryRepository = (*Inventory)(nil)

const entryColumns = `id, pharmacy_id, item_id, quantity, price, low_stock_threshold, is_available, stock_status, created_at, updated_at`

func scanEntry(row pgx.Row) (domain.InventoryEntry, error) {
	var (
		e      domain.InventoryEntry
		status string
	)
	err := row.Scan(&e.ID, &e.PharmacyID, &e.ItemID, &e.Quantity, &e.Price, &e.LowStockThreshold,
		&e.IsAvailable, &status, &e.CreatedAt, &e.UpdatedAt)
	e.StockStatus = domain.StockStatus(status)
	return e, err
}

func (r *Inventory) Create(ctx context.Context, e *domain.InventoryEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO inventory_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.PharmacyID, e.ItemID, e.Quantity, e.Price, e.LowStockThreshold,
		e.IsAvailable, string(e.StockStatus), e.CreatedAt, e.UpdatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return domain.ErrDuplicateEntry
	case isForeignKeyViolation(err):
		return &domain.NotFoundError{Resource: "pharmacy or item", ID: e.PharmacyID.String() + "/" + e.ItemID.String()}
	default:
		return storageErr("inventory.create", err)
	}
}

func (r *Inventory) GetByID(ctx context.Context, id uuid.UUID) (*domain.InventoryEntry, error) {
	e, err := scanEntry(r.db.conn(ctx).QueryRow(ctx, `SELECT `+entryColumns+` FROM inventory_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFound("inventory entry", id)
	}
	if err != nil {
		return nil, storageErr("inventory.get", err)
	}
	return &e, nil
}

func (r *Inventory) GetByPair(ctx context.Context, pharmacyID, itemID uuid.UUID) (*domain.InventoryEntry, error) {
	e, err := scanEntry(r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+entryColumns+` FROM inventory_entries WHERE pharmacy_id = $1 AND item_id = $2`, pharmacyID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pairNotFound(pharmacyID, itemID)
	}
	if err != nil {
		return nil, storageErr("inventory.get_by_pair", err)
	}
	return &e, nil
}

func (r *Inventory) UpdateByID(ctx context.Context, id uuid.UUID, fn repository.MutateFunc) (*domain.InventoryEntry, error) {
	return r.update(ctx, func(tx pgx.Tx) pgx.Row {
		return tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM inventory_entries WHERE id = $1 FOR UPDATE`, id)
	}, func() error { return domain.NewNotFound("inventory entry", id) }, fn)
}

func (r *Inventory) UpdateByPair(ctx context.Context, pharmacyID, itemID uuid.UUID, fn repository.MutateFunc) (*domain.InventoryEntry, error) {
	return r.update(ctx, func(tx pgx.Tx) pgx.Row {
		return tx.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM inventory_entries WHERE pharmacy_id = $1 AND item_id = $2 FOR UPDATE`,
			pharmacyID, itemID)
	}, func() error { return pairNotFound(pharmacyID, itemID) }, fn)
}

// update locks the row, applies fn and writes the result back in the same transaction.
func (r *Inventory) update(
	ctx context.Context,
	lock func(tx pgx.Tx) pgx.Row,
	notFound func() error,
	fn repository.MutateFunc,
) (*domain.InventoryEntry, error) {
	var out domain.InventoryEntry
	err := r.db.atomically(ctx, "inventory.update", func(tx pgx.Tx) error {
		e, err := scanEntry(lock(tx))
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound()
		}
		if err != nil {
			return storageErr("inventory.lock", err)
		}
		orig := e
		if err := fn(&e); err != nil {
			return err
		}
		e.ID, e.PharmacyID, e.ItemID, e.CreatedAt = orig.ID, orig.PharmacyID, orig.ItemID, orig.CreatedAt
		e.UpdatedAt = time.Now().UTC()
		_, err = tx.Exec(ctx, `
			UPDATE inventory_entries
			SET quantity = $2, price = $3, low_stock_threshold = $4, is_available = $5,
			    stock_status = $6, updated_at = $7
			WHERE id = $1`,
			e.ID, e.Quantity, e.Price, e.LowStockThreshold, e.IsAvailable, string(e.StockStatus), e.UpdatedAt,
		)
		if err != nil {
			return storageErr("inventory.update", err)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Inventory) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM inventory_entries WHERE id = $1`, id)
	if err != nil {
		return storageErr("inventory.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("inventory entry", id)
	}
	return nil
}

func (r *Inventory) List(ctx context.Context, f repository.InventoryFilter) ([]domain.InventoryEntry, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT `+entryColumns+`
		FROM inventory_entries
		WHERE ($1::uuid IS NULL OR pharmacy_id = $1)
		  AND ($2::uuid IS NULL OR item_id = $2)
		  AND (NOT $3::bool OR quantity > 0)
		  AND (NOT $4::bool OR stock_status IN ('low-stock', 'out-of-stock'))
		ORDER BY created_at, id`,
		f.PharmacyID, f.ItemID, f.InStockOnly, f.LowStockOnly,
	)
	if err != nil {
		return nil, storageErr("inventory.list", err)
	}
	defer rows.Close()

	out := make([]domain.InventoryEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("inventory.list", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("inventory.list", err)
	}
	return out, nil
}

func pairNotFound(pharmacyID, itemID uuid.UUID) error {
	return &domain.NotFoundError{Resource: "inventory entry", ID: pharmacyID.String() + "/" + itemID.String()}
}
