package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// PgxPool is the slice of pgxpool.Pool the repo needs; tests stub it.
type PgxPool interface {
	Exec(ctx domain.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx domain.Context, sql string, args ...any) pgx.Row
	Query(ctx domain.Context, sql string, args ...any) (pgx.Rows, error)
}

// UserRepo implements domain.UserConfigStore on PostgreSQL.
//
// Schema:
//
//	users(id, name, phone UNIQUE, chat_id, llm_choice,
//	      similarity, impact, relevance, created_at, updated_at)
//	user_stocks(user_id, code, PRIMARY KEY(user_id, code))
//	user_services(user_id, kind, enabled, notify, PRIMARY KEY(user_id, kind))
type UserRepo struct{ Pool PgxPool }

// NewUserRepo constructs a UserRepo with the given pool.
func NewUserRepo(p PgxPool) *UserRepo { return &UserRepo{Pool: p} }

const uniqueViolation = "23505"

func mapPgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("op=%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("op=%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("op=%s: %w", op, err)
}

// CreateUser inserts a profile and its sub-resources, returning the id.
func (r *UserRepo) CreateUser(ctx domain.Context, cfg domain.UserConfig) (string, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Create")
	defer span.End()

	id := cfg.UserID
	if id == "" {
		id = uuid.New().String()
	}
	if cfg.LLMChoice == "" {
		cfg.LLMChoice = domain.LLMOpenAI
	}
	now := time.Now().UTC()
	q := `INSERT INTO users (id, name, phone, chat_id, llm_choice, similarity, impact, relevance, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.Pool.Exec(ctx, q, id, cfg.Name, cfg.Phone, cfg.Notify.ChatID, cfg.LLMChoice,
		cfg.Thresholds.Similarity, cfg.Thresholds.Impact, cfg.Thresholds.Relevance, now, now)
	if err != nil {
		return "", mapPgErr("users.create", err)
	}
	if len(cfg.WatchedTickers) > 0 {
		if err := r.SetUserStocks(ctx, id, cfg.WatchedTickers); err != nil {
			return "", err
		}
	}
	if len(cfg.EnabledServices) > 0 {
		if err := r.SetWantedServices(ctx, id, cfg.EnabledServices); err != nil {
			return "", err
		}
	}
	return id, nil
}

// GetUserConfig assembles a full config snapshot.
func (r *UserRepo) GetUserConfig(ctx domain.Context, userID string) (domain.UserConfig, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Get")
	defer span.End()

	q := `SELECT id, name, COALESCE(phone,''), COALESCE(chat_id,''), llm_choice, similarity, impact, relevance, created_at, updated_at
	      FROM users WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, userID)
	var cfg domain.UserConfig
	if err := row.Scan(&cfg.UserID, &cfg.Name, &cfg.Phone, &cfg.Notify.ChatID, &cfg.LLMChoice,
		&cfg.Thresholds.Similarity, &cfg.Thresholds.Impact, &cfg.Thresholds.Relevance,
		&cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return domain.UserConfig{}, mapPgErr("users.get", err)
	}

	stocks, err := r.GetUserStocks(ctx, userID)
	if err != nil {
		return domain.UserConfig{}, err
	}
	cfg.WatchedTickers = stocks

	services, notify, err := r.getServices(ctx, userID)
	if err != nil {
		return domain.UserConfig{}, err
	}
	cfg.EnabledServices = services
	cfg.Notify.Services = notify
	return cfg, nil
}

// UpdateUserConfig applies a partial profile update.
func (r *UserRepo) UpdateUserConfig(ctx domain.Context, userID string, patch domain.UserConfigPatch) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Update")
	defer span.End()

	// Touch the row first so an unknown user surfaces as NotFound.
	cur, err := r.GetUserConfig(ctx, userID)
	if err != nil {
		return err
	}
	name, phone, chatID := cur.Name, cur.Phone, cur.Notify.ChatID
	th, llm := cur.Thresholds, cur.LLMChoice
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Phone != nil {
		phone = *patch.Phone
	}
	if patch.Thresholds != nil {
		th = *patch.Thresholds
	}
	if patch.LLMChoice != nil {
		llm = *patch.LLMChoice
	}
	if patch.Notify != nil {
		chatID = patch.Notify.ChatID
	}
	q := `UPDATE users SET name=$2, phone=$3, chat_id=$4, llm_choice=$5, similarity=$6, impact=$7, relevance=$8, updated_at=$9 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, userID, name, phone, chatID, llm,
		th.Similarity, th.Impact, th.Relevance, time.Now().UTC()); err != nil {
		return mapPgErr("users.update", err)
	}
	if patch.WatchedTickers != nil {
		if err := r.SetUserStocks(ctx, userID, *patch.WatchedTickers); err != nil {
			return err
		}
	}
	if patch.EnabledServices != nil {
		if err := r.SetWantedServices(ctx, userID, *patch.EnabledServices); err != nil {
			return err
		}
	}
	if patch.Notify != nil && patch.Notify.Services != nil {
		if err := r.setNotifyServices(ctx, userID, patch.Notify.Services); err != nil {
			return err
		}
	}
	return nil
}

// GetUserStocks loads the watched ticker set in insertion-stable order.
func (r *UserRepo) GetUserStocks(ctx domain.Context, userID string) ([]string, error) {
	rows, err := r.Pool.Query(ctx, `SELECT code FROM user_stocks WHERE user_id=$1 ORDER BY code`, userID)
	if err != nil {
		return nil, mapPgErr("users.get_stocks", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, mapPgErr("users.get_stocks", err)
		}
		out = append(out, code)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("users.get_stocks", err)
	}
	return out, nil
}

// SetUserStocks replaces the watched ticker set.
func (r *UserRepo) SetUserStocks(ctx domain.Context, userID string, codes []string) error {
	if _, err := r.Pool.Exec(ctx, `DELETE FROM user_stocks WHERE user_id=$1`, userID); err != nil {
		return mapPgErr("users.set_stocks", err)
	}
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		if _, err := r.Pool.Exec(ctx, `INSERT INTO user_stocks (user_id, code) VALUES ($1,$2)`, userID, code); err != nil {
			return mapPgErr("users.set_stocks", err)
		}
	}
	return nil
}

// GetModelChoice returns the user's LLM vendor.
func (r *UserRepo) GetModelChoice(ctx domain.Context, userID string) (domain.LLMKind, error) {
	row := r.Pool.QueryRow(ctx, `SELECT llm_choice FROM users WHERE id=$1`, userID)
	var kind domain.LLMKind
	if err := row.Scan(&kind); err != nil {
		return "", mapPgErr("users.get_model", err)
	}
	return kind, nil
}

// SetModelChoice updates the user's LLM vendor.
func (r *UserRepo) SetModelChoice(ctx domain.Context, userID string, kind domain.LLMKind) error {
	tag, err := r.Pool.Exec(ctx, `UPDATE users SET llm_choice=$2, updated_at=$3 WHERE id=$1`, userID, kind, time.Now().UTC())
	if err != nil {
		return mapPgErr("users.set_model", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=users.set_model: %w", domain.ErrNotFound)
	}
	return nil
}

// GetWantedServices returns the per-service enablement map.
func (r *UserRepo) GetWantedServices(ctx domain.Context, userID string) (map[domain.ServiceKind]bool, error) {
	enabled, _, err := r.getServices(ctx, userID)
	return enabled, err
}

// SetWantedServices replaces the per-service enablement map.
func (r *UserRepo) SetWantedServices(ctx domain.Context, userID string, services map[domain.ServiceKind]bool) error {
	if _, err := r.Pool.Exec(ctx, `DELETE FROM user_services WHERE user_id=$1`, userID); err != nil {
		return mapPgErr("users.set_services", err)
	}
	for kind, on := range services {
		if _, err := r.Pool.Exec(ctx,
			`INSERT INTO user_services (user_id, kind, enabled, notify) VALUES ($1,$2,$3,$3)`,
			userID, kind, on); err != nil {
			return mapPgErr("users.set_services", err)
		}
	}
	return nil
}

func (r *UserRepo) setNotifyServices(ctx domain.Context, userID string, notify map[domain.ServiceKind]bool) error {
	for kind, on := range notify {
		if _, err := r.Pool.Exec(ctx,
			`UPDATE user_services SET notify=$3 WHERE user_id=$1 AND kind=$2`,
			userID, kind, on); err != nil {
			return mapPgErr("users.set_notify", err)
		}
	}
	return nil
}

func (r *UserRepo) getServices(ctx domain.Context, userID string) (enabled, notify map[domain.ServiceKind]bool, err error) {
	rows, err := r.Pool.Query(ctx, `SELECT kind, enabled, notify FROM user_services WHERE user_id=$1`, userID)
	if err != nil {
		return nil, nil, mapPgErr("users.get_services", err)
	}
	defer rows.Close()
	enabled = make(map[domain.ServiceKind]bool)
	notify = make(map[domain.ServiceKind]bool)
	for rows.Next() {
		var kind domain.ServiceKind
		var on, n bool
		if err := rows.Scan(&kind, &on, &n); err != nil {
			return nil, nil, mapPgErr("users.get_services", err)
		}
		enabled[kind] = on
		notify[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mapPgErr("users.get_services", err)
	}
	return enabled, notify, nil
}
