package forge

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/engine"
)

func readBonuses(req *request) esprit.LeaderBonuses {
	return esprit.LeaderBonuses{
		FusionBonus: req.float("fusion_bonus"),
	}
}

// PreviewFusion reports cost, success rate and guarantee availability.
func (s *Service) PreviewFusion(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	preq := engine.PreviewRequest{
		PlayerID: req.str("player_id"),
		StackAID: req.str("stack_a_id"),
		StackBID: req.str("stack_b_id"),
		Bonuses:  readBonuses(req),
	}
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	preview, err := s.engine.Preview(ctx, preq)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{"preview": previewFields(preview)})
}

// Fuse executes a fusion. A failed roll is a normal response with
// succeeded false.
func (s *Service) Fuse(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	freq := engine.FuseRequest{
		PlayerID:     req.str("player_id"),
		StackAID:     req.str("stack_a_id"),
		StackBID:     req.str("stack_b_id"),
		Bonuses:      readBonuses(req),
		UseFragments: req.boolean("use_fragments"),
		Seed:         req.optionalInt64("seed"),
	}
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	outcome, err := s.engine.Fuse(ctx, freq)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{"outcome": outcomeFields(outcome)})
}

// Awaken raises a stack one level.
func (s *Service) Awaken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	areq := engine.AwakenRequest{
		PlayerID: req.str("player_id"),
		StackID:  req.str("stack_id"),
	}
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	result, err := s.engine.Awaken(ctx, areq)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{"result": awakenFields(result)})
}

// AwakenBatch raises a stack up to count levels.
func (s *Service) AwakenBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)
	breq := engine.AwakenBatchRequest{
		PlayerID: req.str("player_id"),
		StackID:  req.str("stack_id"),
		Count:    req.intValue("count"),
	}
	if req.err != nil {
		return nil, handleError(ctx, req.err)
	}
	result, err := s.engine.AwakenBatch(ctx, breq)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return respond(map[string]any{"result": awakenFields(result)})
}
