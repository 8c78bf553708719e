package forge

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

// CreatePlayer registers a player.
func (s *Service) CreatePlayer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	playerID := req.str("player_id")
	currency, _ := req.int64Value("currency")
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	player, err := s.engine.CreatePlayer(ctx, playerID, currency)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{"player": playerFields(player)})
}

// GetPlayer returns balances, counters and cached collection totals.
func (s *Service) GetPlayer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	playerID := req.str("player_id")
	if req.err == nil && playerID == "" {
		req.fail("player_id", "is required")
	}
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}

	player, err := s.store.GetPlayer(ctx, playerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, handleError(ctx, apperrors.WithMetadata(apperrors.CodePlayerNotFound,
			fmt.Sprintf("player %s not found", playerID), map[string]string{"PlayerID": playerID}))
	}
	if err != nil {
		return nil, handleError(ctx, fmt.Errorf("get player: %w", err))
	}
	totalPower, err := s.snapshots.TotalPower(ctx, playerID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	stats, err := s.snapshots.Collection(ctx, playerID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{
		"player":      playerFields(player),
		"total_power": totalPower,
		"collection":  collectionFields(stats),
	})
}

// GrantCurrency credits currency to a player.
func (s *Service) GrantCurrency(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	playerID := req.str("player_id")
	amount, _ := req.int64Value("amount")
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	player, err := s.engine.GrantCurrency(ctx, playerID, amount)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{"player": playerFields(player)})
}

// GrantFragments credits fragments. fragment_key is "element:<name>" or
// "tier:<n>".
func (s *Service) GrantFragments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	playerID := req.str("player_id")
	rawKey := req.str("fragment_key")
	amount := req.intValue("amount")
	reason := req.str("reason")
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	key, err := esprit.ParseFragmentKey(rawKey)
	if err != nil {
		return nil, handleError(ctx, apperrors.Wrap(apperrors.CodeFragmentInvalidKey, "parse fragment key", err))
	}
	player, err := s.engine.GrantFragments(ctx, playerID, key, amount, reason)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{"player": playerFields(player)})
}

// CaptureEsprit adds one copy of a catalog base to a player's collection.
func (s *Service) CaptureEsprit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	playerID := req.str("player_id")
	baseID := req.str("base_id")
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	stack, err := s.engine.CaptureEsprit(ctx, playerID, baseID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{"stack": stackFields(stack)})
}

// ListTransactions returns a player's transaction log, newest first.
func (s *Service) ListTransactions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	playerID, limit, err := journalQuery(in)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	records, err := s.store.ListTransactions(ctx, playerID, limit)
	if err != nil {
		return nil, handleError(ctx, fmt.Errorf("list transactions: %w", err))
	}
	out := make([]any, 0, len(records))
	for _, rec := range records {
		out = append(out, transactionFields(rec))
	}
	return respond(map[string]any{"transactions": out})
}

// ListFragmentEntries returns a player's fragment journal, newest first.
func (s *Service) ListFragmentEntries(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	playerID, limit, err := journalQuery(in)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	entries, err := s.store.ListFragmentEntries(ctx, playerID, limit)
	if err != nil {
		return nil, handleError(ctx, fmt.Errorf("list fragment entries: %w", err))
	}
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, fragmentEntryFields(e))
	}
	return respond(map[string]any{"entries": out})
}

func journalQuery(in *structpb.Struct) (string, int, error) {
	req := newRequest(in)
	playerID := req.str("player_id")
	pageSize := req.intValue("page_size")
	if req.err == nil && playerID == "" {
		req.fail("player_id", "is required")
	}
	if req.err != nil {
		return "", 0, req.err
	}
	return playerID, clampPageSize(pageSize), nil
}
