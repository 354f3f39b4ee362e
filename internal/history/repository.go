// Package history persists entity power state and the log of dispatched
// commands in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// State is the stored power state of one entity.
type State struct {
	EntityID  string       `json:"entity_id"`
	Name      string       `json:"name"`
	Kind      entity.Kind  `json:"kind"`
	Power     entity.Power `json:"power"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Entry is one dispatched action.
type Entry struct {
	ID          string    `json:"id"`
	EntityID    string    `json:"entity_id"`
	Action      string    `json:"action"`
	Commands    []string  `json:"commands,omitempty"`
	RepeatCount int       `json:"repeat_count,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository defines the persistence operations the bridge needs.
type Repository interface {
	SaveState(ctx context.Context, s State) error
	LoadStates(ctx context.Context) (map[string]State, error)
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, entityID string, limit int) ([]Entry, error)
}

// SQLiteRepository stores history in the entity_state and command_log
// tables.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a repository on db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveState upserts the state of one entity.
func (r *SQLiteRepository) SaveState(ctx context.Context, s State) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entity_state (entity_id, name, kind, power, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   name = excluded.name,
		   kind = excluded.kind,
		   power = excluded.power,
		   updated_at = excluded.updated_at`,
		s.EntityID, s.Name, string(s.Kind), s.Power.String(),
		s.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving state for %s: %w", s.EntityID, err)
	}
	return nil
}

// LoadStates returns every stored state keyed by entity ID.
func (r *SQLiteRepository) LoadStates(ctx context.Context) (map[string]State, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT entity_id, name, kind, power, updated_at FROM entity_state")
	if err != nil {
		return nil, fmt.Errorf("querying entity states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]State)
	for rows.Next() {
		var s State
		var kind, power, updated string
		if err := rows.Scan(&s.EntityID, &s.Name, &kind, &power, &updated); err != nil {
			return nil, fmt.Errorf("scanning entity state: %w", err)
		}
		s.Kind = entity.Kind(kind)
		s.Power = entity.ParsePower(power)
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated) //nolint:errcheck // written by SaveState
		states[s.EntityID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity states: %w", err)
	}
	return states, nil
}

// Record inserts a command log entry. ID and CreatedAt are filled in when
// empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var commands any
	if len(e.Commands) > 0 {
		b, err := json.Marshal(e.Commands)
		if err != nil {
			return fmt.Errorf("marshalling commands: %w", err)
		}
		commands = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, entity_id, action, commands, repeat_count, success, error, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EntityID, e.Action, commands, e.RepeatCount,
		boolToInt(e.Success), nullableString(e.Error), e.Source,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}
	return nil
}

// List returns the most recent entries for entityID, newest first. An
// empty entityID lists all entities.
func (r *SQLiteRepository) List(ctx context.Context, entityID string, limit int) ([]Entry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	query := `SELECT id, entity_id, action, commands, repeat_count, success, error, source, created_at
		FROM command_log`
	args := []any{}
	if entityID != "" {
		query += " WHERE entity_id = ?"
		args = append(args, entityID)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var commands, errText sql.NullString
		var success int
		var created string
		if err := rows.Scan(&e.ID, &e.EntityID, &e.Action, &commands, &e.RepeatCount,
			&success, &errText, &e.Source, &created); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}
		if commands.Valid {
			if err := json.Unmarshal([]byte(commands.String), &e.Commands); err != nil {
				return nil, fmt.Errorf("decoding commands of %s: %w", e.ID, err)
			}
		}
		e.Success = success != 0
		e.Error = errText.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created) //nolint:errcheck // written by Record
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}
	return entries, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
