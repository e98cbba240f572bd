package docstore

import (
	"context"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/tphakala/challenge-migration/internal/logger"
)

// scanQuery flattens the record id to its key so callers see plain strings.
const scanQuery = "SELECT *, meta::id(id) AS id FROM type::table($table)"

const legacyIDQuery = "SELECT meta::id(id) AS id, legacyId FROM type::table($table) WHERE legacyId IN $ids ORDER BY id"

// SurrealConfig holds the connection parameters of a SurrealDB store.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Surreal is a Store backed by SurrealDB.
type Surreal struct {
	db  *surrealdb.DB
	log logger.Logger
}

// NewSurreal connects, signs in when credentials are set and selects the
// namespace and database.
func NewSurreal(ctx context.Context, cfg SurrealConfig, log logger.Logger) (*Surreal, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	start := time.Now()

	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, storeError(err, "connect", "", "")
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, storeError(err, "signin", "", "")
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, storeError(err, "use", "", "")
	}

	log.Info("connected to document store",
		logger.String("url", logger.RedactURL(cfg.URL)),
		logger.String("namespace", cfg.Namespace),
		logger.String("database", cfg.Database),
		logger.Duration("elapsed", time.Since(start)))
	return &Surreal{db: db, log: log}, nil
}

// Create implements Store.
func (s *Surreal) Create(ctx context.Context, table, id string, doc map[string]any) error {
	if _, err := surrealdb.Create[map[string]any](ctx, s.db, models.NewRecordID(table, id), withoutID(doc)); err != nil {
		return storeError(err, "create", table, id)
	}
	return nil
}

// Update implements Store.
func (s *Surreal) Update(ctx context.Context, table, id string, doc map[string]any) error {
	if _, err := surrealdb.Upsert[map[string]any](ctx, s.db, models.NewRecordID(table, id), withoutID(doc)); err != nil {
		return storeError(err, "update", table, id)
	}
	return nil
}

// ScanAll implements Store.
func (s *Surreal) ScanAll(ctx context.Context, table string) ([]map[string]any, error) {
	res, err := surrealdb.Query[[]map[string]any](ctx, s.db, scanQuery, map[string]any{"table": table})
	if err != nil {
		return nil, storeError(err, "scan", table, "")
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	s.log.Debug("document store scan",
		logger.String("table", table),
		logger.Int("documents", len((*res)[0].Result)))
	return (*res)[0].Result, nil
}

// IDsByLegacyID implements Store.
func (s *Surreal) IDsByLegacyID(ctx context.Context, table string, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string)
	if len(ids) == 0 {
		return out, nil
	}
	res, err := surrealdb.Query[[]map[string]any](ctx, s.db, legacyIDQuery, map[string]any{
		"table": table,
		"ids":   ids,
	})
	if err != nil {
		return nil, storeError(err, "lookup-legacy-ids", table, "")
	}
	if res == nil || len(*res) == 0 {
		return out, nil
	}
	for _, doc := range (*res)[0].Result {
		legacyID, ok := legacyIDOf(doc["legacyId"])
		if !ok {
			continue
		}
		id, _ := doc["id"].(string)
		if _, seen := out[legacyID]; !seen && id != "" {
			out[legacyID] = id
		}
	}
	return out, nil
}

// Close implements Store.
func (s *Surreal) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}
