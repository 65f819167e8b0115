// Package seed loads catalog, pharmacy and stock fixtures from YAML.
package seed

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/service"
)

// File формат файла с исходными данными
type File struct {
	Pharmacies []Pharmacy `yaml:"pharmacies"`
	Items      []Item     `yaml:"items"`
	Inventory  []Stock    `yaml:"inventory"`
}

type Pharmacy struct {
	ID           uuid.UUID `yaml:"id"`
	Name         string    `yaml:"name"`
	Street       string    `yaml:"street"`
	City         string    `yaml:"city"`
	Region       string    `yaml:"region"`
	Phone        string    `yaml:"phone"`
	WorkingHours string    `yaml:"workingHours"`
	IsOpen       *bool     `yaml:"isOpen"`
}

type Item struct {
	ID                   uuid.UUID `yaml:"id"`
	Name                 string    `yaml:"name"`
	Category             string    `yaml:"category"`
	Dosage               string    `yaml:"dosage"`
	Form                 string    `yaml:"form"`
	RequiresPrescription bool      `yaml:"requiresPrescription"`
	BasePrice            string    `yaml:"basePrice"`
}

type Stock struct {
	Pharmacy          uuid.UUID `yaml:"pharmacy"`
	Item              uuid.UUID `yaml:"item"`
	Quantity          int       `yaml:"quantity"`
	Price             string    `yaml:"price"`
	LowStockThreshold *int      `yaml:"lowStockThreshold"`
	IsAvailable       *bool     `yaml:"isAvailable"`
}

// Catalog is the write side of the catalog used for seeding.
type Catalog interface {
	RegisterPharmacy(ctx context.Context, p domain.Pharmacy) (*domain.Pharmacy, error)
	RegisterItem(ctx context.Context, it domain.Item) (*domain.Item, error)
}

// Ledger creates inventory entries.
type Ledger interface {
	CreateEntry(ctx context.Context, in service.CreateEntryInput) (*domain.InventoryEntry, error)
}

// Summary counts what Apply wrote.
type Summary struct {
	Pharmacies int
	Items      int
	Entries    int
	Skipped    int
}

func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open seed file %s", path)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*File, error) {
	var out File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "invalid seed file")
	}
	return &out, nil
}

// Apply upserts pharmacies and items, then creates inventory entries.
// Entries that already exist for their pair are left as they are, so a
// seed can be applied more than once.
func Apply(ctx context.Context, f *File, catalog Catalog, ledger Ledger) (Summary, error) {
	var sum Summary
	for _, p := range f.Pharmacies {
		isOpen := true
		if p.IsOpen != nil {
			isOpen = *p.IsOpen
		}
		_, err := catalog.RegisterPharmacy(ctx, domain.Pharmacy{
			ID:           p.ID,
			Name:         p.Name,
			Address:      domain.Address{Street: p.Street, City: p.City, Region: p.Region},
			Phone:        p.Phone,
			WorkingHours: p.WorkingHours,
			IsOpen:       isOpen,
		})
		if err != nil {
			return sum, errors.Wrapf(err, "pharmacy %q", p.Name)
		}
		sum.Pharmacies++
	}

	for _, it := range f.Items {
		price, err := parsePrice(it.BasePrice)
		if err != nil {
			return sum, errors.Wrapf(err, "item %q", it.Name)
		}
		_, err = catalog.RegisterItem(ctx, domain.Item{
			ID:                   it.ID,
			Name:                 it.Name,
			Category:             it.Category,
			Dosage:               it.Dosage,
			Form:                 it.Form,
			RequiresPrescription: it.RequiresPrescription,
			BasePrice:            price,
		})
		if err != nil {
			return sum, errors.Wrapf(err, "item %q", it.Name)
		}
		sum.Items++
	}

	for i, s := range f.Inventory {
		price, err := parsePrice(s.Price)
		if err != nil {
			return sum, errors.Wrapf(err, "inventory[%d]", i)
		}
		_, err = ledger.CreateEntry(ctx, service.CreateEntryInput{
			PharmacyID:        s.Pharmacy,
			ItemID:            s.Item,
			Quantity:          s.Quantity,
			Price:             price,
			LowStockThreshold: s.LowStockThreshold,
			IsAvailable:       s.IsAvailable,
		})
		if errors.Is(err, domain.ErrDuplicateEntry) {
			sum.Skipped++
			continue
		}
		if err != nil {
			return sum, errors.Wrapf(err, "inventory[%d]", i)
		}
		sum.Entries++
	}

	log.Info().
		Int("pharmacies", sum.Pharmacies).
		Int("items", sum.Items).
		Int("entries", sum.Entries).
		Int("skipped", sum.Skipped).
		Msg("seed applied")
	return sum, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidInput, "price %q", s)
	}
	return d, nil
}
