// Package audit records forge transactions, committed or rejected by a rule.
// Sinks are best-effort:
// the engine logs their errors and never fails a committed operation on them.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/espritforge/internal/platform/id"
	"github.com/louisbranch/espritforge/internal/platform/logging"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

// Record kinds.
const (
	KindFusion      = "fusion"
	KindAwakening   = "awakening"
	KindCapture     = "capture"
	KindGrant       = "grant"
	KindPlayerSetup = "player_created"
)

// DetailErrorCode is the detail key holding the rejection code of a failed
// attempt.
const DetailErrorCode = "error_code"

// Record is one transaction attempt. Rejected attempts have Succeeded false,
// zero Cost and a DetailErrorCode entry.
type Record struct {
	ID        string
	Kind      string
	PlayerID  string
	Inputs    []string
	Succeeded bool
	Cost      int64
	Result    string
	Detail    map[string]string
	CreatedAt time.Time
}

// Sink receives records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// Recorder persists transaction records.
type Recorder interface {
	RecordTransaction(ctx context.Context, record storage.TransactionRecord) error
}

// StoreSink writes records through storage.
type StoreSink struct {
	Store Recorder
	// NewID generates record ids; nil uses id.NewID.
	NewID func() (string, error)
}

// Record persists rec, assigning an id when it has none.
func (s StoreSink) Record(ctx context.Context, rec Record) error {
	if s.Store == nil {
		return fmt.Errorf("audit store is not configured")
	}
	if rec.ID == "" {
		newID := s.NewID
		if newID == nil {
			newID = id.NewID
		}
		generated, err := newID()
		if err != nil {
			return fmt.Errorf("generate record id: %w", err)
		}
		rec.ID = generated
	}
	return s.Store.RecordTransaction(ctx, storage.TransactionRecord{
		ID:        rec.ID,
		Kind:      rec.Kind,
		PlayerID:  rec.PlayerID,
		Inputs:    rec.Inputs,
		Succeeded: rec.Succeeded,
		Cost:      rec.Cost,
		Result:    rec.Result,
		Detail:    rec.Detail,
		CreatedAt: rec.CreatedAt,
	})
}

// LoggerSink writes records as structured log entries.
type LoggerSink struct {
	Logger *zap.Logger
}

// Record logs rec at info level.
func (s LoggerSink) Record(_ context.Context, rec Record) error {
	fields := []zap.Field{
		zap.String("kind", rec.Kind),
		zap.String("player_id", rec.PlayerID),
		zap.Strings("inputs", rec.Inputs),
		zap.Bool("succeeded", rec.Succeeded),
		zap.Int64("cost", rec.Cost),
	}
	if rec.Result != "" {
		fields = append(fields, zap.String("result", rec.Result))
	}
	for k, v := range rec.Detail {
		fields = append(fields, zap.String("detail."+k, v))
	}
	logging.OrNop(s.Logger).Info("forge transaction", fields...)
	return nil
}

// Fanout calls every sink and joins their errors.
type Fanout []Sink

// Record forwards rec to each sink.
func (f Fanout) Record(ctx context.Context, rec Record) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
