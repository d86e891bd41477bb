package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-elements/pkg/models"
)

// ErrNotFound is returned for an unknown element id.
var ErrNotFound = errors.New("element not found")

// Store persists items and folders in sqlite.
type Store struct {
	db  *sql.DB
	log logrus.FieldLogger
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New opens (or creates) the database at dbPath.
func New(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:  db,
		log: logrus.StandardLogger(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	return s, nil
}

// init creates the database schema
func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_open BOOLEAN NOT NULL DEFAULT 1,
		parent_id TEXT,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		parent_id TEXT,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);
	CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// All returns every item and folder in insertion order.
func (s *Store) All(ctx context.Context) (*models.Collection, error) {
	c := &models.Collection{Items: []models.Item{}, Folders: []models.Folder{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_open, parent_id, sort_order, created_at, updated_at
		FROM folders ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query folders: %w", err)
	}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		c.Folders = append(c.Folders, *f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read folders: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, title, icon, parent_id, sort_order, created_at, updated_at
		FROM items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		c.Items = append(c.Items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	return c, nil
}

// CreateItem stores a new item and returns it with id and timestamps set.
func (s *Store) CreateItem(ctx context.Context, draft models.ItemDraft) (*models.Item, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := requireFolder(ctx, tx, draft.ParentID); err != nil {
		return nil, err
	}

	now := s.now()
	it := &models.Item{
		ID:        newID(),
		Title:     draft.Title,
		Icon:      draft.Icon,
		ParentID:  draft.ParentID,
		Order:     draft.Order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, title, icon, parent_id, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.Title, it.Icon, nullParent(it.ParentID), it.Order, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"id": it.ID, "parent": it.ParentID}).Debug("item created")
	return it, nil
}

// CreateFolder stores a new folder.
func (s *Store) CreateFolder(ctx context.Context, draft models.FolderDraft) (*models.Folder, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := requireFolder(ctx, tx, draft.ParentID); err != nil {
		return nil, err
	}

	now := s.now()
	f := &models.Folder{
		ID:        newID(),
		Name:      draft.Name,
		IsOpen:    draft.IsOpen,
		ParentID:  draft.ParentID,
		Order:     draft.Order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO folders (id, name, is_open, parent_id, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Name, f.IsOpen, nullParent(f.ParentID), f.Order, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert folder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"id": f.ID, "parent": f.ParentID}).Debug("folder created")
	return f, nil
}

// Update applies a partial update to the element of kind u.Kind.
func (s *Store) Update(ctx context.Context, id string, u models.Update) (models.Element, error) {
	switch u.Kind {
	case models.KindItem:
		it, err := s.UpdateItem(ctx, id, u)
		if err != nil {
			return models.Element{}, err
		}
		return models.ItemElement(it), nil
	case models.KindFolder:
		f, err := s.UpdateFolder(ctx, id, u)
		if err != nil {
			return models.Element{}, err
		}
		return models.FolderElement(f), nil
	}
	return models.Element{}, u.Validate()
}

// UpdateItem applies the item fields of u.
func (s *Store) UpdateItem(ctx context.Context, id string, u models.Update) (*models.Item, error) {
	u.Kind = models.KindItem
	if err := u.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	it, err := scanItem(tx.QueryRowContext(ctx, `
		SELECT id, title, icon, parent_id, sort_order, created_at, updated_at
		FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if u.ParentID != nil {
		if err := requireFolder(ctx, tx, *u.ParentID); err != nil {
			return nil, err
		}
	}

	u.ApplyToItem(it, s.now())
	_, err = tx.ExecContext(ctx, `
		UPDATE items SET title = ?, icon = ?, parent_id = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`, it.Title, it.Icon, nullParent(it.ParentID), it.Order, it.UpdatedAt, it.ID)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return it, nil
}

// UpdateFolder applies the folder fields of u. A parent change that would
// make the folder its own ancestor is rejected with models.ErrCycle.
func (s *Store) UpdateFolder(ctx context.Context, id string, u models.Update) (*models.Folder, error) {
	u.Kind = models.KindFolder
	if err := u.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	f, err := scanFolder(tx.QueryRowContext(ctx, `
		SELECT id, name, is_open, parent_id, sort_order, created_at, updated_at
		FROM folders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if u.ParentID != nil {
		if err := requireFolder(ctx, tx, *u.ParentID); err != nil {
			return nil, err
		}
		cyclic, err := reaches(ctx, tx, *u.ParentID, id)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, models.CycleError(id, *u.ParentID)
		}
	}

	u.ApplyToFolder(f, s.now())
	_, err = tx.ExecContext(ctx, `
		UPDATE folders SET name = ?, is_open = ?, parent_id = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`, f.Name, f.IsOpen, nullParent(f.ParentID), f.Order, f.UpdatedAt, f.ID)
	if err != nil {
		return nil, fmt.Errorf("update folder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return f, nil
}

// requireFolder checks that a non-root parent is an existing folder.
func requireFolder(ctx context.Context, tx *sql.Tx, parent models.ParentID) error {
	if parent.IsRoot() {
		return nil
	}
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM folders WHERE id = ?", string(parent)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.ValidationError{
			Field:   "parentId",
			Message: fmt.Sprintf("parent %s is not a folder", parent),
		}
	}
	return err
}

// reaches reports whether walking up from start hits target. Existing cycles
// in the data end the walk.
func reaches(ctx context.Context, tx *sql.Tx, start models.ParentID, target string) (bool, error) {
	seen := make(map[string]bool)
	for cur := start; !cur.IsRoot(); {
		id := string(cur)
		if id == target {
			return true, nil
		}
		if seen[id] {
			return false, nil
		}
		seen[id] = true

		var parent sql.NullString
		err := tx.QueryRowContext(ctx, "SELECT parent_id FROM folders WHERE id = ?", id).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("walk ancestors: %w", err)
		}
		cur = models.ParentID(parent.String)
	}
	return false, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*models.Item, error) {
	it := &models.Item{}
	var parent sql.NullString
	if err := row.Scan(&it.ID, &it.Title, &it.Icon, &parent, &it.Order, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	it.ParentID = models.ParentID(parent.String)
	return it, nil
}

func scanFolder(row scanner) (*models.Folder, error) {
	f := &models.Folder{}
	var parent sql.NullString
	if err := row.Scan(&f.ID, &f.Name, &f.IsOpen, &parent, &f.Order, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.ParentID = models.ParentID(parent.String)
	return f, nil
}

func nullParent(p models.ParentID) sql.NullString {
	return sql.NullString{String: string(p), Valid: !p.IsRoot()}
}

func newID() string {
	return ulid.Make().String()
}
