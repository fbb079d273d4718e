package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tenant-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// ClientStore persists API clients in the global clients table.
type ClientStore struct {
	db bun.IDB
}

func NewClientStore(db bun.IDB) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) Insert(ctx context.Context, client domain.Client) error {
	row := newClientRow(client)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *ClientStore) Update(ctx context.Context, client domain.Client) error {
	row := newClientRow(client)
	res, err := s.db.NewUpdate().
		Model(&row).
		Column("name", "client_id", "secret_hash", "active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return affected(res, domain.ErrClientNotFound)
}

func (s *ClientStore) Get(ctx context.Context, id string) (domain.Client, error) {
	return s.getBy(ctx, "id", id)
}

func (s *ClientStore) GetByClientID(ctx context.Context, clientID string) (domain.Client, error) {
	return s.getBy(ctx, "client_id", clientID)
}

func (s *ClientStore) List(ctx context.Context, page domain.PageRequest) ([]domain.Client, int, error) {
	var rows []clientRow
	total, err := s.db.NewSelect().
		Model(&rows).
		Order("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	out := make([]domain.Client, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *ClientStore) getBy(ctx context.Context, column, value string) (domain.Client, error) {
	var row clientRow
	err := s.db.NewSelect().Model(&row).Where("? = ?", bun.Ident(column), value).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Client{}, domain.ErrClientNotFound
	}
	if err != nil {
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	return row.toDomain(), nil
}
