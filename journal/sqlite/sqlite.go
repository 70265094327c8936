package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jirevwe/threadpool/journal"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var (
	createRequests = `create table if not exists requests (
			id TEXT not null primary key,
			status TEXT not null default 'accepted',
			remote_addr TEXT not null default '',
			request_line TEXT not null default '',
			request BLOB,
			created_at TEXT not null default (strftime('%Y-%m-%dT%H:%M:%fZ')),
			updated_at TEXT not null default (strftime('%Y-%m-%dT%H:%M:%fZ'))
		) strict;`

	createRequestsStatusIndex = `create index if not exists idx_requests_status on requests (status);`
)

type Sqlite struct {
	logger *slog.Logger
	db     *sqlx.DB
}

var _ journal.Journal = (*Sqlite)(nil)

func NewSqlite(dbPath string, logger *slog.Logger) (*Sqlite, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?mode=rwc&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, err
	}

	// one connection: every transaction, including the read-then-write in
	// UpdateStatus, runs serially
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_size_limit = 67108864;")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	_, err = db.Exec("PRAGMA cache_size = 2000;")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Sqlite{db: db, logger: logger}

	ctx := context.Background()
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err = tx.ExecContext(ctx, createRequests)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, createRequestsStatusIndex)
		if err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("request journal opened", "path", dbPath)
	return s, nil
}

// Record inserts a new entry, an empty status defaults to accepted
func (s *Sqlite) Record(ctx context.Context, entry *journal.Entry) error {
	if entry.Status == "" {
		entry.Status = string(journal.StatusAccepted)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		writeQuery := `insert into requests (id, status, remote_addr, request_line, request) values ($1, $2, $3, $4, $5)`
		_, innerErr := tx.ExecContext(ctx, writeQuery, entry.Id, entry.Status, entry.RemoteAddr, entry.RequestLine, entry.Request)
		if innerErr != nil {
			return innerErr
		}
		return nil
	})
}

// Attach fills in the request of an entry recorded before it was read
func (s *Sqlite) Attach(ctx context.Context, id string, requestLine string, request []byte) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		updateQuery := `update requests set request_line = $1, request = $2, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ') where id = $3`
		res, innerErr := tx.ExecContext(ctx, updateQuery, requestLine, request, id)
		if innerErr != nil {
			return innerErr
		}

		n, innerErr := res.RowsAffected()
		if innerErr != nil {
			return innerErr
		}

		if n == 0 {
			return journal.ErrEntryNotFound
		}
		return nil
	})
}

// UpdateStatus moves the entry to the given status, refusing backward moves
func (s *Sqlite) UpdateStatus(ctx context.Context, id string, status journal.Status) (entry journal.Entry, err error) {
	getItemById := `select * from requests where id = $1`
	updateItemStatus := `update requests set status = $1, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ') where id = $2 returning *;`

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		var current journal.Entry
		if getErr := tx.QueryRowxContext(ctx, getItemById, id).StructScan(&current); getErr != nil {
			if errors.Is(getErr, sql.ErrNoRows) {
				return journal.ErrEntryNotFound
			}
			return getErr
		}

		if !journal.Status(current.Status).CanMoveTo(status) {
			return fmt.Errorf("%w: %s -> %s", journal.ErrInvalidTransition, current.Status, status)
		}

		return tx.QueryRowxContext(ctx, updateItemStatus, string(status), id).StructScan(&entry)
	})

	return entry, err
}

// Get fetches a single entry
func (s *Sqlite) Get(ctx context.Context, id string) (entry journal.Entry, err error) {
	err = s.db.QueryRowxContext(ctx, `select * from requests where id = $1`, id).StructScan(&entry)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, journal.ErrEntryNotFound
	}
	return entry, err
}

// List returns entries ordered by id, which for ulids is creation order
func (s *Sqlite) List(ctx context.Context, status journal.Status, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		// sqlite treats a negative limit as no limit
		limit = -1
	}

	var (
		entries []journal.Entry
		err     error
	)

	if status == "" {
		err = s.db.SelectContext(ctx, &entries, `select * from requests order by id limit $1`, limit)
	} else {
		err = s.db.SelectContext(ctx, &entries, `select * from requests where status = $1 order by id limit $2`, string(status), limit)
	}

	return entries, err
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) inTx(ctx context.Context, cb func(*sqlx.Tx) error) (err error) {
	tx, beginErr := s.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("cannot start tx: %w", beginErr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = rollback(tx, nil)
			panic(rec)
		}
	}()

	if err = cb(tx); err != nil {
		return rollback(tx, err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("cannot commit tx: %w", commitErr)
	}

	return nil
}

func rollback(tx *sqlx.Tx, err error) error {
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		return fmt.Errorf("cannot roll back tx after error (tx error: %v), original error: %w", rollbackErr, err)
	}
	return err
}
