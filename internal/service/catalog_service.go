package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

// CatalogService чтение каталога и справочника аптек; запись только для загрузки данных
type CatalogService struct {
	repo repository.CatalogRepository
}

func NewCatalogService(repo repository.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidInput
	}
	return s.repo.GetItem(ctx, id)
}

func (s *CatalogService) GetPharmacy(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidInput
	}
	return s.repo.GetPharmacy(ctx, id)
}

func (s *CatalogService) ListItems(ctx context.Context, f repository.ItemFilter) ([]domain.Item, error) {
	return s.repo.ListItemsMatching(ctx, f)
}

func (s *CatalogService) RegisterItem(ctx context.Context, it domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(it.Name) == "" || !domain.ValidPrice(it.BasePrice) {
		return nil, domain.ErrInvalidInput
	}
	cp := it
	if err := s.repo.SaveItem(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *CatalogService) RegisterPharmacy(ctx context.Context, p domain.Pharmacy) (*domain.Pharmacy, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, domain.ErrInvalidInput
	}
	cp := p
	if err := s.repo.SavePharmacy(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
