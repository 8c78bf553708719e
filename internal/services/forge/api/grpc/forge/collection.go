package forge

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/platform/grpc/pagination"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
	"github.com/louisbranch/espritforge/internal/services/forge/storage/filter"
)

func clampPageSize(n int) int {
	return pagination.ClampPageSize(int32(n), pagination.PageSizeConfig{Default: defaultPageSize, Max: maxPageSize})
}

// ListStacks pages through a player's stacks. filter uses AIP-160 syntax
// over element, base_id, tier, awakening_level and quantity.
func (s *Service) ListStacks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	playerID := req.str("player_id")
	filterStr := req.str("filter")
	rawOrder := req.str("order_by")
	pageSize := clampPageSize(req.intValue("page_size"))
	pageToken := req.str("page_token")
	if req.err == nil && playerID == "" {
		req.fail("player_id", "is required")
	}
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}

	orderBy, err := pagination.NormalizeOrderBy(rawOrder, pagination.OrderByConfig{
		Default: storage.DefaultStackOrder,
		Allowed: storage.StackOrders,
	})
	if err != nil {
		return nil, handleError(ctx, invalidField("order_by", "%v", err))
	}
	expr, err := filter.Parse(filterStr)
	if err != nil {
		return nil, handleError(ctx, apperrors.Wrap(apperrors.CodeListFilterInvalid, "parse filter", err))
	}
	var cursor pagination.Cursor
	if pageToken != "" {
		cursor, err = pagination.DecodeToken(pageToken)
		if err == nil && !cursor.Matches(filterStr, orderBy) {
			err = fmt.Errorf("page token was issued for a different query")
		}
		if err != nil {
			return nil, handleError(ctx, apperrors.Wrap(apperrors.CodeListPageTokenInvalid, "decode page token", err))
		}
	}

	stacks, err := s.store.ListStacks(ctx, storage.ListStacksQuery{
		OwnerID: playerID,
		Filter:  expr,
		OrderBy: orderBy,
		Limit:   pageSize + 1,
		Offset:  cursor.Offset,
	})
	if err != nil {
		return nil, handleError(ctx, fmt.Errorf("list stacks: %w", err))
	}
	nextToken := ""
	if len(stacks) > pageSize {
		stacks = stacks[:pageSize]
		nextToken = pagination.EncodeToken(pagination.Cursor{
			Offset:  cursor.Offset + pageSize,
			Filter:  filterStr,
			OrderBy: orderBy,
		})
	}
	out := make([]any, 0, len(stacks))
	for _, stack := range stacks {
		out = append(out, stackFields(stack))
	}
	return respond(map[string]any{"stacks": out, "next_page_token": nextToken})
}

// ListBases returns catalog entries, optionally narrowed to one tier and
// element.
func (s *Service) ListBases(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	tier := req.intValue("tier")
	rawElement := req.str("element")
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	var want element.Element
	if rawElement != "" {
		e, err := element.Parse(rawElement)
		if err != nil {
			return nil, handleError(ctx, invalidField("element", "%v", err))
		}
		want = e
	}

	bases, err := s.store.ListBases(ctx)
	if err != nil {
		return nil, handleError(ctx, fmt.Errorf("list bases: %w", err))
	}
	out := make([]any, 0, len(bases))
	for _, b := range bases {
		if tier != 0 && b.Tier != tier {
			continue
		}
		if want != "" && b.Element != want {
			continue
		}
		out = append(out, baseFields(b))
	}
	return respond(map[string]any{"bases": out})
}
