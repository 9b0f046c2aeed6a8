package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"roombooker/internal/model"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingOverlap    = errors.New("booking overlaps an existing booking")
	ErrEventNotFound     = errors.New("event not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrApprovalNotFound  = errors.New("approval not found")
)

type BookingRepository interface {
	Create(ctx context.Context, b *model.Booking) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	List(ctx context.Context) ([]model.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Booking, error)
	ListByRoom(ctx context.Context, roomID int64) ([]model.Booking, error)
	Update(ctx context.Context, b *model.Booking) error
	Delete(ctx context.Context, id int64) error
}

type EventRepository interface {
	Create(ctx context.Context, e *model.Event) (int64, error)
	// CreateFromBooking inserts e unless an event already references e.BookingID.
	// created is false for such duplicates.
	CreateFromBooking(ctx context.Context, e *model.Event) (created bool, err error)
	GetByID(ctx context.Context, id int64) (*model.Event, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	Update(ctx context.Context, e *model.Event) error
	AttachBooking(ctx context.Context, eventID, bookingID int64) error
	// UpdateStatusTx applies the status state machine under a row lock.
	UpdateStatusTx(ctx context.Context, id int64, next model.EventStatus) (*model.Event, error)
	Delete(ctx context.Context, id int64) error
}

type ApprovalRepository interface {
	// Upsert writes a keyed by EventID: a second call for the same event overwrites the first.
	Upsert(ctx context.Context, a *model.Approval) error
	GetByID(ctx context.Context, id int64) (*model.Approval, error)
	GetByEventID(ctx context.Context, eventID int64) (*model.Approval, error)
	List(ctx context.Context) ([]model.Approval, error)
}

// Migrator applies the *.up.sql / *.down.sql files of a service.
type Migrator struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewMigrator(db *dbpg.DB, log *zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &Migrator{db: db, log: log}, nil
}

func (m *Migrator) MigrateUp(migrationsDir string) error {
	return m.apply(migrationsDir, "*.up.sql", false)
}

func (m *Migrator) MigrateDown(migrationsDir string) error {
	return m.apply(migrationsDir, "*.down.sql", true)
}

func (m *Migrator) apply(dir, pattern string, reverse bool) error {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := m.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	m.log.Info().Str("dir", dir).Str("pattern", pattern).Int("files", len(files)).Msg("migrations applied")
	return nil
}

const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func now() time.Time {
	return time.Now().UTC()
}
