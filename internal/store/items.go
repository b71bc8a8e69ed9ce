package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/erazemk/itemapi/internal/db"
	"github.com/erazemk/itemapi/internal/model"
)

var itemColumns = []string{
	"id", "name", "description", "roll_number", "class_name", "phone_number", "image_url",
}

// ItemStore persists items in the configured database.
type ItemStore struct {
	db *db.DB
	sq squirrel.StatementBuilderType
}

// NewItemStore creates an ItemStore on top of an open database.
func NewItemStore(database *db.DB) *ItemStore {
	return &ItemStore{db: database, sq: database.Builder()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var description, rollNumber, className, phoneNumber, imageURL sql.NullString
	err := row.Scan(&item.ID, &item.Name, &description, &rollNumber, &className, &phoneNumber, &imageURL)
	if err != nil {
		return nil, err
	}
	item.Description = nullable(description)
	item.RollNumber = nullable(rollNumber)
	item.ClassName = nullable(className)
	item.PhoneNumber = nullable(phoneNumber)
	item.ImageURL = nullable(imageURL)
	return item, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// columnValues maps writable columns to the item's values.
func columnValues(item *model.Item) map[string]any {
	return map[string]any{
		"name":         item.Name,
		"description":  item.Description,
		"roll_number":  item.RollNumber,
		"class_name":   item.ClassName,
		"phone_number": item.PhoneNumber,
		"image_url":    item.ImageURL,
	}
}

// List returns all items ordered by id.
func (s *ItemStore) List(ctx context.Context) ([]model.Item, error) {
	query, args, err := s.sq.Select(itemColumns...).From("items").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// Get returns an item by id, or ErrNotFound.
func (s *ItemStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	query, args, err := s.sq.Select(itemColumns...).From("items").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get query: %w", err)
	}

	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}
	return item, nil
}

// Create validates the supplied fields and inserts a new item. The returned
// item carries the id assigned by the database.
func (s *ItemStore) Create(ctx context.Context, fields model.ItemFields) (*model.Item, error) {
	item := &model.Item{}
	item.Apply(fields)
	if msgs := item.Validate(); len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	query, args, err := s.sq.Insert("items").
		SetMap(columnValues(item)).
		Suffix("RETURNING " + strings.Join(itemColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert: %w", err)
	}

	created, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return created, nil
}

// Update merges the supplied fields into an existing item, validates the
// result and saves it. Fields left nil keep their stored values. Nothing is
// written when validation fails.
func (s *ItemStore) Update(ctx context.Context, id int64, fields model.ItemFields) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning update: %w", err)
	}
	defer tx.Rollback()

	sel := s.sq.Select(itemColumns...).From("items").Where(squirrel.Eq{"id": id})
	if lock := s.db.LockClause(); lock != "" {
		sel = sel.Suffix(lock)
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get query: %w", err)
	}

	item, err := scanItem(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading item %d: %w", id, err)
	}

	item.Apply(fields)
	if msgs := item.Validate(); len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	query, args, err = s.sq.Update("items").
		SetMap(columnValues(item)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("updating item %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update of item %d: %w", id, err)
	}
	return item, nil
}

// Delete removes an item permanently, or returns ErrNotFound.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	query, args, err := s.sq.Delete("items").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting item %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting item %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
