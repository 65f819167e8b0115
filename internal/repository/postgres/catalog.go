package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

// Catalog каталог товаров и справочник аптек в PostgreSQL
type Catalog struct {
	db *DB
}

func NewCatalog(db *DB) *Catalog { return &Catalog{db: db} }

var _ repository.CatalogRepository = (*Catalog)(nil)

const itemColumns = `id, name, category, dosage, form, requires_prescription, base_price, search_count`

func scanItem(row pgx.Row) (domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Dosage, &it.Form, &it.RequiresPrescription, &it.BasePrice, &it.SearchCount)
	return it, err
}

func (c *Catalog) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	it, err := scanItem(c.db.conn(ctx).QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFound("item", id)
	}
	if err != nil {
		return nil, storageErr("catalog.get_item", err)
	}
	return &it, nil
}

func (c *Catalog) GetPharmacy(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error) {
	var p domain.Pharmacy
	err := c.db.conn(ctx).QueryRow(ctx, `
		SELECT id, name, street, city, region, phone, working_hours, is_open
		FROM pharmacies WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Address.Street, &p.Address.City, &p.Address.Region, &p.Phone, &p.WorkingHours, &p.IsOpen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFound("pharmacy", id)
	}
	if err != nil {
		return nil, storageErr("catalog.get_pharmacy", err)
	}
	return &p, nil
}

func (c *Catalog) ListItemsMatching(ctx context.Context, f repository.ItemFilter) ([]domain.Item, error) {
	rows, err := c.db.conn(ctx).Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE ($1::text = '' OR strpos(lower(name), lower($1::text)) > 0)
		  AND ($2::text = '' OR lower(category) = lower($2::text))
		ORDER BY name, id`,
		strings.TrimSpace(f.NameSubstring), strings.TrimSpace(f.Category),
	)
	if err != nil {
		return nil, storageErr("catalog.list_items", err)
	}
	defer rows.Close()

	out := make([]domain.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("catalog.list_items", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("catalog.list_items", err)
	}
	return out, nil
}

func (c *Catalog) SaveItem(ctx context.Context, it *domain.Item) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	_, err := c.db.conn(ctx).Exec(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			dosage = EXCLUDED.dosage,
			form = EXCLUDED.form,
			requires_prescription = EXCLUDED.requires_prescription,
			base_price = EXCLUDED.base_price`,
		it.ID, it.Name, it.Category, it.Dosage, it.Form, it.RequiresPrescription, it.BasePrice, it.SearchCount,
	)
	if err != nil {
		return storageErr("catalog.save_item", err)
	}
	return nil
}

func (c *Catalog) SavePharmacy(ctx context.Context, p *domain.Pharmacy) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := c.db.conn(ctx).Exec(ctx, `
		INSERT INTO pharmacies (id, name, street, city, region, phone, working_hours, is_open)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			region = EXCLUDED.region,
			phone = EXCLUDED.phone,
			working_hours = EXCLUDED.working_hours,
			is_open = EXCLUDED.is_open`,
		p.ID, p.Name, p.Address.Street, p.Address.City, p.Address.Region, p.Phone, p.WorkingHours, p.IsOpen,
	)
	if err != nil {
		return storageErr("catalog.save_pharmacy", err)
	}
	return nil
}
