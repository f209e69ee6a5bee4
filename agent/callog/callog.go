// Package callog persists finished-call outcomes for later campaign review.
// Recording is best-effort: a write failure is logged by the caller and never
// fails the call itself.
package callog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/baazlab/voicereach/agent/contract"
	statex "github.com/baazlab/voicereach/agent/state"
)

// Record is one finished call.
type Record struct {
	bun.BaseModel `bun:"table:call_records,alias:cr"`

	ID     int64  `bun:"id,pk,autoincrement"`
	CallID string `bun:"call_id,notnull"`
	From   string `bun:"from_number"`
	To     string `bun:"to_number"`

	Outcome         string `bun:"outcome,notnull"`
	Exchanges       int    `bun:"exchanges,notnull"`
	ConfirmStrength int    `bun:"confirm_strength,notnull"`
	RejectStrength  int    `bun:"reject_strength,notnull"`

	LeadName     string `bun:"lead_name"`
	LeadLocation string `bun:"lead_location"`

	StartedAt time.Time `bun:"started_at,nullzero"`
	EndedAt   time.Time `bun:"ended_at,nullzero"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// FromSession shapes a record from a finished session.
func FromSession(sess *statex.Session) Record {
	if sess == nil {
		return Record{}
	}
	return Record{
		CallID:          sess.CallID,
		From:            sess.From,
		To:              sess.To,
		Outcome:         string(sess.Outcome),
		Exchanges:       sess.ExchangeCount,
		ConfirmStrength: sess.ConfirmStrength,
		RejectStrength:  sess.RejectStrength,
		LeadName:        sess.Lead.Name,
		LeadLocation:    sess.Lead.Location,
		StartedAt:       sess.CreatedAt,
		EndedAt:         sess.UpdatedAt,
	}
}

// Failed shapes a record for a call that ended on the error path before its
// session reached a terminal outcome.
func Failed(callID string, now time.Time) Record {
	return Record{
		CallID:  callID,
		Outcome: string(contractx.OutcomeFailed),
		EndedAt: now.UTC(),
	}
}

// Recorder persists call records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	Close() error
}

// Config points the recorder at its database.
type Config struct {
	DSN string `envconfig:"DSN"`
}

// NewBun opens a postgres-backed recorder.
func NewBun(cfg Config) (*BunRecorder, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("call log dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &BunRecorder{db: db}, nil
}

type BunRecorder struct {
	db *bun.DB
}

// EnsureSchema creates the call_records table when it does not exist yet.
func (r *BunRecorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*Record)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (r *BunRecorder) Record(ctx context.Context, rec Record) error {
	_, err := r.db.NewInsert().Model(&rec).Exec(ctx)
	return err
}

func (r *BunRecorder) Close() error {
	return r.db.Close()
}

// NoopRecorder discards records. Used when no database is configured.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, Record) error { return nil }
func (NoopRecorder) Close() error                         { return nil }
