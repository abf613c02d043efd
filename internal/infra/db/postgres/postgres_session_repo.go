package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/domain/ports/repository"
	"baking-ai-assistant/internal/infra/metrics"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo persists sessions and their turns in Postgres. SaveTurn runs
// in one transaction so a full exchange (two turn rows + the session row)
// commits or rolls back as a unit.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Load(ctx context.Context, key string) (*model.Session, error) {
	s := model.NewSession(key)

	// First write wins for created_at: the insert is a no-op when the row
	// already exists and the stored values are read back below.
	const qEnsure = `
INSERT INTO sessions (session_key, active_recipe, current_step, preferences, created_at, updated_at)
VALUES ($1, NULL, $2, $3, $4, $4)
ON CONFLICT (session_key) DO NOTHING;`
	prefsJSON, err := json.Marshal(s.Preferences)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}
	tag, err := r.pool.Exec(ctx, qEnsure, key, model.NoStep, prefsJSON, s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		metrics.IncSessionOp("load_create")
	} else {
		metrics.IncSessionOp("load")
	}

	const qSession = `
SELECT active_recipe, current_step, preferences, created_at, updated_at
FROM sessions WHERE session_key = $1;`
	var recipeJSON []byte
	if err := r.pool.QueryRow(ctx, qSession, key).Scan(
		&recipeJSON, &s.CurrentStepIndex, &prefsJSON, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(recipeJSON) > 0 {
		var recipe model.Recipe
		if err := json.Unmarshal(recipeJSON, &recipe); err != nil {
			return nil, fmt.Errorf("decode active recipe: %w", err)
		}
		s.ActiveRecipe = &recipe
	}
	if err := json.Unmarshal(prefsJSON, &s.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}

	const qTurns = `
SELECT id, role, content, created_at
FROM turns WHERE session_key = $1 ORDER BY id;`
	rows, err := r.pool.Query(ctx, qTurns, key)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()
	s.Turns = s.Turns[:0]
	for rows.Next() {
		var t model.Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		s.Turns = append(s.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) SaveTurn(ctx context.Context, s *model.Session, userTurn, assistantTurn model.Turn) error {
	recipeJSON, err := marshalRecipe(s.ActiveRecipe)
	if err != nil {
		return err
	}
	prefsJSON, err := json.Marshal(s.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	err = r.withTx(ctx, func(tx pgx.Tx) error {
		const qTurn = `
INSERT INTO turns (id, session_key, role, content, created_at)
VALUES ($1, $2, $3, $4, $5);`
		for _, t := range []model.Turn{userTurn, assistantTurn} {
			if _, err := tx.Exec(ctx, qTurn, t.ID, s.Key, string(t.Role), t.Content, t.Timestamp); err != nil {
				return fmt.Errorf("insert turn: %w", err)
			}
		}

		const qSession = `
UPDATE sessions SET active_recipe = $2, current_step = $3, preferences = $4, updated_at = $5
WHERE session_key = $1;`
		if _, err := tx.Exec(ctx, qSession, s.Key, recipeJSON, s.CurrentStepIndex, prefsJSON, s.UpdatedAt); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.IncSessionOp("save_turn")
	return nil
}

func (r *SessionRepo) SavePreferences(ctx context.Context, key string, prefs model.Preferences) error {
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	const q = `UPDATE sessions SET preferences = $2, updated_at = NOW() WHERE session_key = $1;`
	if _, err := r.pool.Exec(ctx, q, key, prefsJSON); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (r *SessionRepo) Reset(ctx context.Context, key string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM turns WHERE session_key = $1;`, key); err != nil {
			return fmt.Errorf("clear turns: %w", err)
		}
		const q = `
UPDATE sessions SET active_recipe = NULL, current_step = $2, updated_at = NOW()
WHERE session_key = $1;`
		if _, err := tx.Exec(ctx, q, key, model.NoStep); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return nil
	})
}

func (r *SessionRepo) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (r *SessionRepo) CountTurns(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM turns;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}

func (r *SessionRepo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func marshalRecipe(r *model.Recipe) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal recipe: %w", err)
	}
	return b, nil
}
