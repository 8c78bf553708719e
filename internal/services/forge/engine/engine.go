// Package engine executes forge operations: fusion, awakening, captures and
// grants. Every mutation locks the player and the stacks it touches, runs in
// one storage transaction, and only after commit invalidates caches and
// writes the transaction log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/platform/id"
	"github.com/louisbranch/espritforge/internal/platform/lockset"
	"github.com/louisbranch/espritforge/internal/platform/logging"
	"github.com/louisbranch/espritforge/internal/platform/otel"
	"github.com/louisbranch/espritforge/internal/platform/random"
	"github.com/louisbranch/espritforge/internal/platform/timeouts"
	"github.com/louisbranch/espritforge/internal/services/forge/audit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/fusion"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

const tracerName = "github.com/louisbranch/espritforge/internal/services/forge/engine"

// CacheInvalidator drops derived per-player views after a commit.
type CacheInvalidator interface {
	InvalidatePlayerPower(playerID string)
	InvalidateCollectionStats(playerID string)
}

// TransactionLog receives a record of every committed operation and of
// fusion or awakening attempts rejected by a rule. Errors are logged and
// otherwise ignored.
type TransactionLog interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Engine runs forge operations against a store.
type Engine struct {
	store  storage.Store
	locks  *lockset.Set
	rules  fusion.Rules
	cache  CacheInvalidator
	log    TransactionLog
	logger *zap.Logger
	tracer trace.Tracer

	lockWait    time.Duration
	clock       func() time.Time
	idGenerator func() (string, error)
	seedSource  random.SeedFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules overrides the default fusion rules.
func WithRules(rules fusion.Rules) Option {
	return func(e *Engine) { e.rules = rules.Normalized() }
}

// WithCache sets the cache to invalidate after commits.
func WithCache(cache CacheInvalidator) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithTransactionLog sets the transaction log.
func WithTransactionLog(log TransactionLog) Option {
	return func(e *Engine) { e.log = log }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(logger) }
}

// WithLocks shares a lock set between engines over the same store.
func WithLocks(locks *lockset.Set) Option {
	return func(e *Engine) {
		if locks != nil {
			e.locks = locks
		}
	}
}

// WithLockWait overrides timeouts.LockWait. Non-positive values wait until
// the request context ends.
func WithLockWait(wait time.Duration) Option {
	return func(e *Engine) { e.lockWait = wait }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator overrides id.NewID for new players' stacks.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.idGenerator = gen }
}

// WithSeedSource overrides how seeds are drawn when a request has none.
func WithSeedSource(gen random.SeedFunc) Option {
	return func(e *Engine) { e.seedSource = gen }
}

// New builds an engine over store.
func New(store storage.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	e := &Engine{
		store:       store,
		locks:       lockset.New(),
		lockWait:    timeouts.LockWait,
		rules:       fusion.DefaultRules(),
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
		clock:       time.Now,
		idGenerator: id.NewID,
		seedSource:  random.NewSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rules returns the fusion rules the engine enforces.
func (e *Engine) Rules() fusion.Rules {
	return e.rules
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// mutate locks keys, runs fn in a transaction and, after commit, invalidates
// the player's caches and records rec.
func (e *Engine) mutate(ctx context.Context, playerID string, stackIDs []string, fn func(ctx context.Context, tx storage.Tx) (audit.Record, error)) error {
	keys := []string{lockset.PlayerKey(playerID)}
	for _, stackID := range stackIDs {
		keys = append(keys, lockset.StackKey(stackID))
	}
	release, err := e.acquire(ctx, keys)
	if err != nil {
		return err
	}
	defer release()

	var rec audit.Record
	err = e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		rec, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}

	if e.cache != nil {
		e.cache.InvalidatePlayerPower(playerID)
		e.cache.InvalidateCollectionStats(playerID)
	}
	e.record(ctx, rec)
	return nil
}

func (e *Engine) acquire(ctx context.Context, keys []string) (lockset.Release, error) {
	if e.lockWait <= 0 {
		return e.locks.Acquire(ctx, keys...)
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.lockWait)
	defer cancel()
	release, err := e.locks.Acquire(waitCtx, keys...)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("wait for locks %v: %w", keys, err)
	}
	return release, err
}

func (e *Engine) record(ctx context.Context, rec audit.Record) {
	if e.log == nil || rec.Kind == "" {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = e.now()
	}
	// Runs after commit; request cancellation must not drop the record.
	if err := e.log.Record(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("record transaction",
			zap.String("kind", rec.Kind),
			zap.String("player_id", rec.PlayerID),
			zap.Error(err))
	}
}

// finish ends span with err and logs invariant violations.
func (e *Engine) finish(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch {
	case esprit.IsInvariant(err):
		e.logger.Error("engine invariant violated", zap.String("op", op), zap.Error(err))
	case apperrors.CodeOf(err) == apperrors.CodeUnknown && !errors.Is(err, context.Canceled):
		e.logger.Error("forge operation failed", zap.String("op", op), zap.Error(err))
	}
}

func (e *Engine) start(ctx context.Context, op, playerID string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "forge."+op, trace.WithAttributes(attribute.String("forge.player_id", playerID)))
}

// trimIDs normalizes request ids in place. Stores trim ids on lookup, so
// lock keys must be built from the same form.
func trimIDs(ids ...*string) {
	for _, id := range ids {
		*id = strings.TrimSpace(*id)
	}
}

// rejectable reports whether err is a rule or resource rejection that
// belongs in the transaction log.
func rejectable(err error) (apperrors.Code, bool) {
	code := apperrors.CodeOf(err)
	switch code {
	case apperrors.CodeUnknown, apperrors.CodeEngineInvariantViolation, apperrors.CodeRequestInvalid:
		return code, false
	}
	return code, true
}

// recordRejection logs an attempt that changed nothing. Cost is zero because
// rejected calls roll back before anything is charged.
func (e *Engine) recordRejection(ctx context.Context, kind, playerID string, inputs []string, err error) {
	code, ok := rejectable(err)
	if !ok {
		return
	}
	e.record(ctx, audit.Record{
		Kind:     kind,
		PlayerID: playerID,
		Inputs:   inputs,
		Detail:   map[string]string{audit.DetailErrorCode: string(code)},
	})
}

// requireIDs takes field/value pairs and rejects the first blank value.
func requireIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		field, value := pairs[i], pairs[i+1]
		if strings.TrimSpace(value) == "" {
			return apperrors.New(apperrors.CodeRequestInvalid, field+" is required").With("Field", field)
		}
	}
	return nil
}

func playerLookupError(playerID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodePlayerNotFound,
			fmt.Sprintf("player %s not found", playerID), map[string]string{"PlayerID": playerID})
	}
	return fmt.Errorf("load player: %w", err)
}

func stackLookupError(stackID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodeStackNotFound,
			fmt.Sprintf("stack %s not found", stackID), map[string]string{"StackID": stackID})
	}
	return fmt.Errorf("load stack: %w", err)
}

func loadPlayer(ctx context.Context, tx storage.Tx, playerID string) (esprit.Player, error) {
	player, err := tx.GetPlayerForUpdate(ctx, playerID)
	if err != nil {
		return esprit.Player{}, playerLookupError(playerID, err)
	}
	return player, nil
}

func loadStack(ctx context.Context, tx storage.Tx, stackID string) (esprit.Stack, error) {
	stack, err := tx.GetStackForUpdate(ctx, stackID)
	if err != nil {
		return esprit.Stack{}, stackLookupError(stackID, err)
	}
	if stack.Quantity < 0 {
		return esprit.Stack{}, esprit.Invariant("load stack", "stack %s has quantity %d", stack.ID, stack.Quantity)
	}
	return stack, nil
}

func loadOwnedStack(ctx context.Context, tx storage.Tx, playerID, stackID string) (esprit.Stack, error) {
	stack, err := loadStack(ctx, tx, stackID)
	if err != nil {
		return esprit.Stack{}, err
	}
	if stack.OwnerID != playerID {
		return esprit.Stack{}, apperrors.WithMetadata(apperrors.CodeStackNotOwner,
			fmt.Sprintf("stack %s is owned by %s, not %s", stack.ID, stack.OwnerID, playerID),
			map[string]string{"StackID": stack.ID})
	}
	return stack, nil
}

// addCopy puts one copy of base into the player's collection, stacking onto
// an existing stack with the same identity.
func (e *Engine) addCopy(ctx context.Context, tx storage.Tx, playerID string, base esprit.Base, now time.Time) (esprit.Stack, error) {
	key := esprit.StackKey{OwnerID: playerID, BaseID: base.ID, Tier: base.Tier, Element: base.Element}
	stack, err := tx.FindStack(ctx, key)
	switch {
	case err == nil:
		stack.Quantity++
		stack.UpdatedAt = now
	case errors.Is(err, storage.ErrNotFound):
		stackID, err := e.idGenerator()
		if err != nil {
			return esprit.Stack{}, fmt.Errorf("generate stack id: %w", err)
		}
		stack = esprit.Stack{
			ID:        stackID,
			BaseID:    base.ID,
			OwnerID:   playerID,
			Quantity:  1,
			Tier:      base.Tier,
			Element:   base.Element,
			CreatedAt: now,
			UpdatedAt: now,
		}
	default:
		return esprit.Stack{}, fmt.Errorf("find stack: %w", err)
	}
	if err := tx.SaveStack(ctx, stack); err != nil {
		return esprit.Stack{}, fmt.Errorf("save stack: %w", err)
	}
	return stack, nil
}

// putStack saves stack, or deletes it once it holds no copies.
func putStack(ctx context.Context, tx storage.Tx, stack esprit.Stack) (deleted bool, err error) {
	switch {
	case stack.Quantity < 0:
		return false, esprit.Invariant("put stack", "stack %s would hold %d copies", stack.ID, stack.Quantity)
	case stack.Quantity == 0:
		if err := tx.DeleteStack(ctx, stack.ID); err != nil {
			return false, fmt.Errorf("delete stack: %w", err)
		}
		return true, nil
	default:
		if err := tx.SaveStack(ctx, stack); err != nil {
			return false, fmt.Errorf("save stack: %w", err)
		}
		return false, nil
	}
}
