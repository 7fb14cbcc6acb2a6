// Package runner applies and reverts migrations against a live database and
// renders migration scripts, recording progress in the history table.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/differ"
	"github.com/aqasim81/schema-migrator/internal/history"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Direction of a migration run.
type Direction string

// Directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ProgressEvent is emitted for each migration processed.
type ProgressEvent struct {
	Migration *migration.Migration
	Direction Direction
	Status    string
	Duration  time.Duration
	Error     error
}

// Runner applies migrations through one generator and history repository.
type Runner struct {
	conn           database.Conn
	gen            *sqlgen.Generator
	hist           *history.Repository
	differ         *differ.Differ
	productVersion string
	logger         *slog.Logger
	dryRun         bool
	onProgress     func(ProgressEvent)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithProductVersion sets the product version recorded in history rows.
func WithProductVersion(v string) Option {
	return func(r *Runner) { r.productVersion = v }
}

// WithDryRun reports what would run without executing anything.
func WithDryRun(b bool) Option {
	return func(r *Runner) { r.dryRun = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// WithDiffer sets the differ used to plan migrations.
func WithDiffer(d *differ.Differ) Option {
	return func(r *Runner) { r.differ = d }
}

// New creates a Runner. conn may be nil when only Script is used.
func New(conn database.Conn, gen *sqlgen.Generator, hist *history.Repository, opts ...Option) *Runner {
	r := &Runner{
		conn:           conn,
		gen:            gen,
		hist:           hist,
		productVersion: DefaultProductVersion,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	if r.differ == nil && gen != nil {
		r.differ = differ.New(differ.WithTarget(gen))
	}

	return r
}

// DefaultProductVersion is recorded in history rows unless overridden.
const DefaultProductVersion = "schema-migrator/1.0"

// Applied returns the applied migrations in ID order. A missing history table
// means nothing has been applied.
func (r *Runner) Applied(ctx context.Context) ([]history.Row, error) {
	if r.conn == nil {
		return nil, ErrNoConnection
	}

	n, err := r.conn.QueryInt(ctx, r.hist.ExistsScript())
	if err != nil {
		return nil, fmt.Errorf("checking history table: %w", err)
	}

	if n == 0 {
		return nil, nil
	}

	rows, err := r.conn.QueryStrings(ctx, r.hist.GetAppliedMigrationsScript())
	if err != nil {
		return nil, fmt.Errorf("reading history table: %w", err)
	}

	out := make([]history.Row, 0, len(rows))

	for _, row := range rows {
		hr := history.Row{}
		if len(row) > 0 {
			hr.MigrationID = row[0]
		}

		if len(row) > 1 {
			hr.ProductVersion = row[1]
		}

		out = append(out, hr)
	}

	return out, nil
}

// Pending returns the migrations of ms not yet applied, in ID order.
func (r *Runner) Pending(ctx context.Context, ms []migration.Migration) ([]migration.Migration, error) {
	applied, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	var pending []migration.Migration

	for _, m := range migration.Sort(ms) {
		if !applied[m.ID] {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// Apply applies every pending migration in order. Each migration's commands
// and its history row commit together, except commands that must run outside
// a transaction.
func (r *Runner) Apply(ctx context.Context, ms []migration.Migration) error {
	if r.conn == nil {
		return ErrNoConnection
	}

	release, err := r.lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !r.dryRun {
		if err := r.conn.Exec(ctx, r.hist.GetCreateIfNotExistsScript()); err != nil {
			return fmt.Errorf("creating history table: %w", err)
		}
	}

	applied, err := r.appliedSet(ctx)
	if err != nil {
		return err
	}

	sorted := migration.Sort(ms)

	if err := checkOrder(sorted, applied); err != nil {
		return err
	}

	steps, err := migration.Plan(r.differ, sorted)
	if err != nil {
		return err
	}

	for i := range steps {
		s := &steps[i]
		if applied[s.Migration.ID] {
			continue
		}

		trailer := r.hist.GetInsertScript(history.Row{MigrationID: s.Migration.ID, ProductVersion: r.productVersion})

		if err := r.run(ctx, s, Up, trailer); err != nil {
			return err
		}
	}

	return nil
}

// Revert reverts the last steps applied migrations, newest first.
func (r *Runner) Revert(ctx context.Context, ms []migration.Migration, steps int) error {
	return r.revert(ctx, ms, func(applied []history.Row) []history.Row {
		if steps <= 0 {
			return nil
		}

		if steps > len(applied) {
			steps = len(applied)
		}

		return applied[len(applied)-steps:]
	})
}

// RevertTo reverts every applied migration after target. A target of "0"
// reverts everything.
func (r *Runner) RevertTo(ctx context.Context, ms []migration.Migration, target string) error {
	if target != InitialTarget && !containsID(ms, target) {
		return fmt.Errorf("%w: %s", ErrUnknownMigration, target)
	}

	return r.revert(ctx, ms, func(applied []history.Row) []history.Row {
		for i, row := range applied {
			if row.MigrationID > target {
				return applied[i:]
			}
		}

		return nil
	})
}

// InitialTarget names the state before the first migration.
const InitialTarget = "0"

func (r *Runner) revert(ctx context.Context, ms []migration.Migration, pick func([]history.Row) []history.Row) error {
	if r.conn == nil {
		return ErrNoConnection
	}

	release, err := r.lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}

	sorted := migration.Sort(ms)

	steps, err := migration.Plan(r.differ, sorted)
	if err != nil {
		return err
	}

	byID := make(map[string]*migration.Step, len(steps))
	for i := range steps {
		byID[steps[i].Migration.ID] = &steps[i]
	}

	targets := pick(applied)

	for i := len(targets) - 1; i >= 0; i-- {
		id := targets[i].MigrationID

		s, ok := byID[id]
		if !ok {
			return fmt.Errorf("reverting %s: %w", id, ErrUnknownMigration)
		}

		if err := r.run(ctx, s, Down, r.hist.GetDeleteScript(id)); err != nil {
			return err
		}
	}

	return nil
}

// run generates one step's commands and executes them followed by trailer.
func (r *Runner) run(ctx context.Context, s *migration.Step, dir Direction, trailer string) error {
	m := s.Migration

	ops := s.Up
	if dir == Down {
		ops = s.Down
	}

	cmds, err := r.gen.Generate(ops)
	if err != nil {
		return fmt.Errorf("generating migration %s: %w", m.ID, err)
	}

	if r.dryRun {
		r.logger.Info("dry run", "migration", m.ID, "direction", dir, "commands", len(cmds))
		r.fireProgress(ProgressEvent{Migration: m, Direction: dir, Status: StatusSkipped})

		return nil
	}

	r.fireProgress(ProgressEvent{Migration: m, Direction: dir, Status: StatusStarting})
	r.logger.Info("running migration", "migration", m.ID, "direction", dir, "commands", len(cmds))

	start := time.Now()
	execErr := r.execute(ctx, cmds, trailer)
	duration := time.Since(start)

	if execErr != nil {
		r.fireProgress(ProgressEvent{Migration: m, Direction: dir, Status: StatusFailed, Duration: duration, Error: execErr})
		r.logger.Error("migration failed", "migration", m.ID, "direction", dir, "error", execErr)

		return fmt.Errorf("executing migration %s (%s): %w", m.ID, dir, execErr)
	}

	r.fireProgress(ProgressEvent{Migration: m, Direction: dir, Status: StatusCompleted, Duration: duration})
	r.logger.Info("migration completed", "migration", m.ID, "direction", dir, "duration", duration)

	return nil
}

func (r *Runner) appliedSet(ctx context.Context) (map[string]bool, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(applied))
	for _, row := range applied {
		set[row.MigrationID] = true
	}

	return set, nil
}

func (r *Runner) lock(ctx context.Context) (func(), error) {
	locker, ok := r.conn.(database.Locker)
	if !ok || r.dryRun {
		return func() {}, nil
	}

	h, err := locker.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring migration lock: %w", err)
	}

	return func() {
		if err := h.Release(ctx); err != nil {
			r.logger.Warn("releasing migration lock", "error", err)
		}
	}, nil
}

func (r *Runner) fireProgress(event ProgressEvent) {
	if r.onProgress != nil {
		r.onProgress(event)
	}
}

// checkOrder rejects pending migrations that sort before the newest applied one.
func checkOrder(sorted []migration.Migration, applied map[string]bool) error {
	last := ""

	for _, m := range sorted {
		if applied[m.ID] {
			last = m.ID
		}
	}

	for _, m := range sorted {
		if !applied[m.ID] && m.ID < last {
			return fmt.Errorf("%w: %s is pending but %s is applied", ErrOutOfOrder, m.ID, last)
		}
	}

	return nil
}

func containsID(ms []migration.Migration, id string) bool {
	for i := range ms {
		if ms[i].ID == id {
			return true
		}
	}

	return false
}
