// Package sqlite is the single-file store. The pool holds one connection, so
// every gorm transaction runs alone and the checks inside it see a stable
// snapshot without row locks.
package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"caixa/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
// Paths without query parameters get a busy timeout and WAL journaling.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: logger.New(gormWriter{log: log}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&userRow{}, &productRow{}, &inventoryRow{},
		&saleRow{}, &commissionRow{}, &returnRow{},
		&registerRow{}, &cashMovementRow{},
		&customerRow{}, &creditRow{}, &loyaltyRow{}, &loyaltyProgramRow{},
		&supplierRow{}, &purchaseOrderRow{}, &reliabilityRow{},
		&financialRow{}, &financialLogRow{}, &installmentRow{}, &recurringRow{},
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter routes gorm's slow query and error lines into zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn().Str("component", "sqlite").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func notFound(err error, entity string, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.NotFound(entity, id)
	}
	return err
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// saveColumns writes every column of row, keeping timestamps as given.
func saveColumns(tx *gorm.DB, row any) error {
	return tx.Model(row).Select("*").UpdateColumns(row).Error
}

func eq(q *gorm.DB, column string, value string) *gorm.DB {
	if value == "" {
		return q
	}
	return q.Where(column+" = ?", value)
}

func between(q *gorm.DB, column string, from *time.Time, to *time.Time) *gorm.DB {
	if from != nil {
		q = q.Where(column+" >= ?", from.UTC())
	}
	if to != nil {
		q = q.Where(column+" <= ?", to.UTC())
	}
	return q
}

func limit(q *gorm.DB, n int) *gorm.DB {
	if n > 0 {
		return q.Limit(n)
	}
	return q
}

func convert[From any, To any](in []From, fn func(From) To) []To {
	out := make([]To, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
