package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Eddy0415/PharmaMap-sub000/internal/cache"
	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

// SortOrder порядок выдачи поиска
type SortOrder string

const (
	SortDistance     SortOrder = "distance"
	SortPriceLow     SortOrder = "price-low"
	SortPriceHigh    SortOrder = "price-high"
	SortAvailability SortOrder = "availability"
)

// SearchQuery параметры поиска наличия
type SearchQuery struct {
	Query       string
	Category    string
	City        string
	SortBy      SortOrder
	InStockOnly bool
}

// AvailableItem товар, найденный в конкретной аптеке
type AvailableItem struct {
	Item        domain.Item        `json:"item"`
	EntryID     uuid.UUID          `json:"entryId"`
	Price       decimal.Decimal    `json:"price"`
	Quantity    int                `json:"quantity"`
	StockStatus domain.StockStatus `json:"stockStatus"`
}

// PharmacyBucket группа найденных товаров одной аптеки
type PharmacyBucket struct {
	Pharmacy domain.Pharmacy `json:"pharmacy"`
	Items    []AvailableItem `json:"items"`
}

// SearchResult результат поиска. Shared between concurrent callers, treat as read-only.
type SearchResult struct {
	Buckets      []PharmacyBucket `json:"buckets"`
	TotalMatched int              `json:"totalMatched"`
}

// SearchService агрегатор наличия: только чтение
type SearchService struct {
	catalog     repository.CatalogRepository
	inventory   repository.InventoryRepository
	cache       cache.Cache
	ttl         time.Duration
	group       singleflight.Group
	parallelism int
}

// NewSearchService; a nil cache or non-positive ttl disables caching.
func NewSearchService(catalog repository.CatalogRepository, inventory repository.InventoryRepository, c cache.Cache, ttl time.Duration) *SearchService {
	return &SearchService{
		catalog:     catalog,
		inventory:   inventory,
		cache:       c,
		ttl:         ttl,
		parallelism: 8,
	}
}

func (q SearchQuery) normalize() (SearchQuery, error) {
	q.Query = strings.TrimSpace(q.Query)
	q.Category = strings.TrimSpace(q.Category)
	q.City = strings.TrimSpace(q.City)
	switch q.SortBy {
	case "":
		q.SortBy = SortDistance
	case SortDistance, SortPriceLow, SortPriceHigh, SortAvailability:
	default:
		return q, fmt.Errorf("%w: unknown sort order %q", domain.ErrInvalidInput, q.SortBy)
	}
	return q, nil
}

// generationKey counter bumped on every committed ledger change; cached results
// are keyed by it, so a bump makes every earlier result unreachable.
const generationKey = "search:generation"

func (q SearchQuery) cacheKey(generation int64) string {
	return fmt.Sprintf("search:%d:%s|%s|%s|%s|%t", generation,
		strings.ToLower(q.Query), strings.ToLower(q.Category), strings.ToLower(q.City), q.SortBy, q.InStockOnly)
}

func (s *SearchService) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// Invalidate drops every cached result. Wired as an InventoryService stock change listener.
func (s *SearchService) Invalidate(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if _, err := s.cache.Incr(context.WithoutCancel(ctx), generationKey); err != nil {
		log.Error().Err(err).Msg("failed to invalidate search cache")
	}
}

// Search ищет наличие товаров по аптекам
func (s *SearchService) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}
	if !s.cacheEnabled() {
		return s.aggregate(ctx, q)
	}

	// read the generation before aggregating: a change committed meanwhile
	// bumps it and the result below lands under a key nobody reads again
	generation, err := s.cache.Counter(ctx, generationKey)
	if err != nil {
		log.Warn().Err(err).Msg("search cache generation unavailable, bypassing cache")
		return s.aggregate(ctx, q)
	}
	key := q.cacheKey(generation)
	if res, ok := s.fromCache(ctx, key); ok {
		return res, nil
	}

	// the shared call must not die with whichever caller started it
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		// a concurrent caller may have filled the cache meanwhile
		if res, ok := s.fromCache(shared, key); ok {
			return res, nil
		}
		res, err := s.aggregate(shared, q)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(res); err == nil {
			if err := s.cache.Set(shared, key, data, s.ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("search cache write failed")
			}
		}
		return res, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*SearchResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SearchService) fromCache(ctx context.Context, key string) (*SearchResult, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("search cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var res SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupt search cache entry")
		return nil, false
	}
	return &res, true
}

func (s *SearchService) aggregate(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	items, err := s.catalog.ListItemsMatching(ctx, repository.ItemFilter{NameSubstring: q.Query, Category: q.Category})
	if err != nil {
		return nil, err
	}

	// per-item fetches run in parallel, results stay in item order
	perItem := make([][]domain.InventoryEntry, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := range items {
		i := i
		g.Go(func() error {
			id := items[i].ID
			entries, err := s.inventory.List(gctx, repository.InventoryFilter{ItemID: &id, InStockOnly: q.InStockOnly})
			if err != nil {
				return err
			}
			perItem[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pharmacies := make(map[uuid.UUID]*domain.Pharmacy)
	bucketIdx := make(map[uuid.UUID]int)
	res := &SearchResult{Buckets: make([]PharmacyBucket, 0)}
	for i, it := range items {
		for _, e := range perItem[i] {
			if !e.IsAvailable {
				continue
			}
			p, seen := pharmacies[e.PharmacyID]
			if !seen {
				p, err = s.catalog.GetPharmacy(ctx, e.PharmacyID)
				if err != nil && !errors.Is(err, domain.ErrNotFound) {
					return nil, err
				}
				pharmacies[e.PharmacyID] = p
			}
			if p == nil || (q.City != "" && !strings.EqualFold(strings.TrimSpace(p.Address.City), q.City)) {
				continue
			}
			b, ok := bucketIdx[p.ID]
			if !ok {
				b = len(res.Buckets)
				bucketIdx[p.ID] = b
				res.Buckets = append(res.Buckets, PharmacyBucket{Pharmacy: *p})
			}
			res.Buckets[b].Items = append(res.Buckets[b].Items, AvailableItem{
				Item:        it,
				EntryID:     e.ID,
				Price:       e.Price,
				Quantity:    e.Quantity,
				StockStatus: e.StockStatus,
			})
			res.TotalMatched++
		}
	}
	sortBuckets(res.Buckets, q.SortBy)
	return res, nil
}

// sortBuckets is stable: equal keys keep discovery order.
func sortBuckets(buckets []PharmacyBucket, by SortOrder) {
	switch by {
	case SortPriceLow:
		sort.SliceStable(buckets, func(i, j int) bool {
			return buckets[i].Items[0].Price.LessThan(buckets[j].Items[0].Price)
		})
	case SortPriceHigh:
		sort.SliceStable(buckets, func(i, j int) bool {
			return buckets[i].Items[0].Price.GreaterThan(buckets[j].Items[0].Price)
		})
	case SortAvailability:
		sort.SliceStable(buckets, func(i, j int) bool {
			return bestRank(buckets[i]) < bestRank(buckets[j])
		})
	}
}

func bestRank(b PharmacyBucket) int {
	best := domain.StockStatusOutOfStock.Rank()
	for _, it := range b.Items {
		if r := it.StockStatus.Rank(); r < best {
			best = r
		}
	}
	return best
}
