package loadrepository

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/scriptcache/internal/domain"
	"github.com/Amund211/scriptcache/internal/reporting"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db     *sqlx.DB
	schema string

	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("scriptcache/loadrepository/postgres")

	return &Postgres{
		db:     db,
		schema: schema,

		tracer: tracer,
	}
}

type dbScriptLoadsEntry struct {
	InstanceID string    `db:"instance_id"`
	Name       string    `db:"name"`
	URL        string    `db:"url"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
	StartedAt  time.Time `db:"started_at"`
	SettledAt  time.Time `db:"settled_at"`
}

func (p *Postgres) StoreLoad(ctx context.Context, outcome domain.LoadOutcome) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreLoad")
	defer span.End()

	switch outcome.Status {
	case domain.LoadStatusLoaded, domain.LoadStatusRejected:
	default:
		err := fmt.Errorf("invalid load status")
		reporting.Report(ctx, err, map[string]string{
			"name":   outcome.Name,
			"status": string(outcome.Status),
		})
		return err
	}

	entry := dbScriptLoadsEntry{
		InstanceID: outcome.InstanceID,
		Name:       outcome.Name,
		URL:        outcome.URL,
		Status:     string(outcome.Status),
		Error:      outcome.Error,
		StartedAt:  outcome.StartedAt,
		SettledAt:  outcome.SettledAt,
	}

	_, err := p.db.NamedExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.script_loads
		(instance_id, name, url, status, error, started_at, settled_at)
		VALUES
		(:instance_id, :name, :url, :status, :error, :started_at, :settled_at)`,
		pq.QuoteIdentifier(p.schema),
	),
		entry,
	)
	if err != nil {
		err := fmt.Errorf("failed to insert script load: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"name": outcome.Name,
			"url":  outcome.URL,
		})
		return err
	}

	return nil
}
