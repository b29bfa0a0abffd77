package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"lead-intake/pkg/logger"
)

const listCachePrefix = "leads:list:"

// ListCacheKey identifies one list page. Equal queries share a key.
func ListCacheKey(page, limit int, sortBy SortField, order string) string {
	return fmt.Sprintf("%spage=%d:limit=%d:sort=%s:%s", listCachePrefix, page, limit, sortBy, order)
}

// normalizeQuery validates q before any store or cache access.
func (s *Service) normalizeQuery(q ListQuery) (ListParams, string, error) {
	if q.Page < 1 {
		return ListParams{}, "", invalidArgument("page must be >= 1, got %d", q.Page)
	}
	if q.Limit < 1 || q.Limit > s.opts.MaxListLimit {
		return ListParams{}, "", invalidArgument("limit must be between 1 and %d, got %d", s.opts.MaxListLimit, q.Limit)
	}
	if q.Page > maxPage(q.Limit) {
		return ListParams{}, "", invalidArgument("page must be <= %d for limit %d, got %d", maxPage(q.Limit), q.Limit, q.Page)
	}

	by := SortField(q.SortBy)
	if _, ok := sortColumns[by]; !ok {
		return ListParams{}, "", invalidArgument("sortBy must be one of createdAt, firstName, lastName, email, got %q", q.SortBy)
	}

	order := strings.ToUpper(strings.TrimSpace(q.SortOrder))
	if order != SortAsc && order != SortDesc {
		return ListParams{}, "", invalidArgument("sortOrder must be ASC or DESC, got %q", q.SortOrder)
	}

	return ListParams{
		SortBy: by,
		Desc:   order == SortDesc,
		Offset: (q.Page - 1) * q.Limit,
		Limit:  q.Limit,
	}, order, nil
}

// ListLeads returns one sorted page of leads.
//
// Pages are cached for ListCacheTTL. Creates do not invalidate cached pages,
// so a page may be stale for up to one TTL.
func (s *Service) ListLeads(ctx context.Context, q ListQuery) (ListResult, error) {
	log := logger.From(ctx)

	p, order, err := s.normalizeQuery(q)
	if err != nil {
		return ListResult{}, err
	}
	key := ListCacheKey(q.Page, q.Limit, p.SortBy, order)

	if raw, hit, err := s.cache.Get(ctx, key); err != nil {
		log.Warn("list cache read failed", "key", key, "err", err)
	} else if hit {
		var cached ListResult
		err := json.Unmarshal(raw, &cached)
		if err == nil {
			s.opts.Metrics.ObserveListCache(true)
			return cached, nil
		}
		log.Warn("list cache entry undecodable", "key", key, "err", err)
	}
	s.opts.Metrics.ObserveListCache(false)

	items, total, err := s.repo.List(ctx, p)
	if err != nil {
		return ListResult{}, storeFailure("list leads", err)
	}
	if items == nil {
		items = []Lead{}
	}

	out := ListResult{
		Items: items,
		Pagination: Pagination{
			Total:      total,
			Page:       q.Page,
			Limit:      q.Limit,
			TotalPages: totalPages(total, q.Limit),
		},
	}

	if raw, err := json.Marshal(out); err != nil {
		log.Warn("list result not cacheable", "err", err)
	} else if err := s.cache.Set(ctx, key, raw, s.opts.ListCacheTTL); err != nil {
		log.Warn("list cache write failed", "key", key, "err", err)
	}
	return out, nil
}

// maxPage keeps the page offset within int range.
func maxPage(limit int) int {
	return math.MaxInt/limit + 1
}

func totalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
