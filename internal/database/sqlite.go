package database

import (
	"database/sql"
	"fmt"
	"time"

	"dt-go/internal/database/migrations"
	"dt-go/internal/dt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the dt.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens (or creates) the database at path and brings its
// schema up to date. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys default to OFF in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteDatabase) CreateOperation(operation, parameters string) (*dt.OperationRecord, error) {
	startedAt := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO update_operations (operation, parameters, started_at, status)
		 VALUES (?, ?, ?, 'running')`,
		operation, parameters, startedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}

	return &dt.OperationRecord{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     "running",
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status, oldRevision, newRevision, detail string) error {
	_, err := s.db.Exec(
		`UPDATE update_operations
		 SET finished_at = ?, status = ?, old_revision = ?, new_revision = ?, detail = ?
		 WHERE id = ?`,
		time.Now().UTC(), status, oldRevision, newRevision, detail, id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*dt.OperationRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status,
		        old_revision, new_revision, detail
		 FROM update_operations
		 ORDER BY id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*dt.OperationRecord
	for rows.Next() {
		var op dt.OperationRecord
		var finished sql.NullTime
		err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &finished,
			&op.Status, &op.OldRevision, &op.NewRevision, &op.Detail)
		if err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteDatabase implements dt.Database.
var _ dt.Database = (*SQLiteDatabase)(nil)
