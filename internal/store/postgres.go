package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const notifyChannel = "documents_changed"

const (
	insertDocumentQuery = `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
	`
	mergeDocumentQuery = `
		UPDATE documents
		SET data = data || $3::jsonb,
			updated_at = now()
		WHERE collection = $1 AND id = $2
	`
	deleteDocumentQuery = `DELETE FROM documents WHERE collection = $1 AND id = $2`
)

// PostgresStore keeps every collection in one jsonb table. A trigger
// notifies documents_changed with the collection name, which subscribers
// answer by re-reading the whole collection.
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
	now    func() time.Time
}

func NewPostgresStore(db *sql.DB, dsn string, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, dsn: dsn, logger: logger, now: time.Now}
}

// OpenPostgres opens a pgx-backed database handle and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, collection string, fields any) (string, error) {
	data, err := marshalFields(fields)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, insertDocumentQuery, collection, id, string(data)); err != nil {
		return "", fmt.Errorf("insert %s document: %w", collection, err)
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := marshalFields(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, mergeDocumentQuery, collection, id, string(data))
	if err != nil {
		return fmt.Errorf("update %s document: %w", collection, err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, deleteDocumentQuery, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s document: %w", collection, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	listener := pq.NewListener(s.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("listener event", "collection", q.Collection, "event", ev, "error", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	release := func() {
		if err := listener.Close(); err != nil {
			s.logger.Warn("close listener", "collection", q.Collection, "error", err)
		}
	}
	return s.follow(ctx, q, listener.Notify, listener.Ping, release), nil
}

// follow emits a snapshot of q now and again after every notification for
// q's collection until ctx is cancelled or notify is closed. The returned
// channel is closed after release has run.
func (s *PostgresStore) follow(ctx context.Context, q Query, notify <-chan *pq.Notification, ping func() error, release func()) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	go func() {
		defer close(ch)
		defer release()

		s.emit(ctx, q, ch)
		keepalive := time.NewTicker(90 * time.Second)
		defer keepalive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notify:
				if !ok {
					return
				}
				// nil means the connection was re-established and
				// notifications may have been missed.
				if n != nil && n.Extra != q.Collection {
					continue
				}
				s.emit(ctx, q, ch)
			case <-keepalive.C:
				go ping()
			}
		}
	}()
	return ch
}

func (s *PostgresStore) emit(ctx context.Context, q Query, ch chan Snapshot) {
	snap, err := s.list(ctx, q)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("read collection", "collection", q.Collection, "error", err)
		}
		return
	}
	offer(ch, snap)
}

func (s *PostgresStore) list(ctx context.Context, q Query) (Snapshot, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1 ORDER BY created_at, id`
	args := []any{q.Collection}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		query = `SELECT id, data FROM documents WHERE collection = $1 ORDER BY data->>$2 ` + dir + ` NULLS LAST, created_at, id`
		args = append(args, q.OrderBy)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return Snapshot{}, err
		}
		docs = append(docs, Document{ID: id, Fields: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Collection: q.Collection, Documents: docs, ReadAt: s.now()}, nil
}
