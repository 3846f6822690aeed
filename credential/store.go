package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned by Lock when no principal has the given id.
var ErrNotFound = errors.New("credential: principal not found")

const pgUniqueViolation = "23505"

var _ authcore.CredentialStore = (*Store)(nil)

// Store is a bun-backed principal repository.
type Store struct {
	db   *bun.DB
	node *snowflake.Node
	now  func() time.Time
}

// NewStore returns a Store that assigns internal ids from node.
func NewStore(db *bun.DB, node *snowflake.Node) *Store {
	return &Store{db: db, node: node, now: time.Now}
}

// CreateSchema creates the principals table with unique email and external
// UUID columns when it does not exist yet.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*principalModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credential: create schema: %w", err)
	}
	return nil
}

// Save inserts p and returns it with ID and CreatedAt assigned.
func (s *Store) Save(ctx context.Context, p authcore.Principal) (authcore.Principal, error) {
	p.Email = flows.NormalizeEmail(p.Email)
	p.ID = s.node.Generate().Int64()
	p.CreatedAt = s.now().UTC().Truncate(time.Microsecond)

	if _, err := s.db.NewInsert().Model(toModel(p)).Exec(ctx); err != nil {
		if dup := duplicateKey(err); dup != nil {
			return authcore.Principal{}, dup
		}
		return authcore.Principal{}, fmt.Errorf("credential: save: %w", err)
	}
	return p, nil
}

// FindByEmail looks up a principal by normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (authcore.Principal, bool, error) {
	return s.findOne(ctx, "email = ?", flows.NormalizeEmail(email))
}

// FindByUUID looks up a principal by its external UUID.
func (s *Store) FindByUUID(ctx context.Context, externalUUID string) (authcore.Principal, bool, error) {
	return s.findOne(ctx, "external_uuid = ?", externalUUID)
}

// ExistsByEmail reports whether any principal holds email.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*principalModel)(nil)).
		Where("email = ?", flows.NormalizeEmail(email)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("credential: exists: %w", err)
	}
	return exists, nil
}

// DeleteByID removes the principal. Deleting an absent id is not an error.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().
		Model((*principalModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credential: delete: %w", err)
	}
	return nil
}

// Lock marks the principal as locked. There is no unlock.
func (s *Store) Lock(ctx context.Context, id int64) error {
	res, err := s.db.NewUpdate().
		Model((*principalModel)(nil)).
		Set("account_locked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credential: lock: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (authcore.Principal, bool, error) {
	var m principalModel
	err := s.db.NewSelect().Model(&m).Where(where, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.Principal{}, false, nil
	}
	if err != nil {
		return authcore.Principal{}, false, fmt.Errorf("credential: find: %w", err)
	}
	return m.principal(), true, nil
}

// duplicateKey translates a driver uniqueness violation into a
// DuplicateKeyError naming the violated column, or returns nil.
func duplicateKey(err error) *authcore.DuplicateKeyError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return nil
		}
		return &authcore.DuplicateKeyError{Field: fieldOf(pgErr.ConstraintName + " " + pgErr.Detail), Err: err}
	}

	// sqlite drivers only expose the violation through the message.
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	return &authcore.DuplicateKeyError{Field: fieldOf(msg), Err: err}
}

func fieldOf(s string) string {
	switch {
	case strings.Contains(s, "external_uuid"):
		return "external_uuid"
	case strings.Contains(s, "email"):
		return "email"
	case strings.Contains(s, "pkey"), strings.Contains(s, "principals.id"):
		return "id"
	default:
		return "unknown"
	}
}
