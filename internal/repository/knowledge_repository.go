package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// KnowledgeBaseRepository reads reference material for answer drafting.
type KnowledgeBaseRepository interface {
	ListActiveByCategory(ctx context.Context, categoryID string, limit int) ([]domain.KnowledgeBaseEntry, error)
}

// PromptTemplateRepository reads per-category answer prompts.
type PromptTemplateRepository interface {
	// GetActiveByCategory returns pgx.ErrNoRows when the category has no active template.
	GetActiveByCategory(ctx context.Context, categoryID string) (*domain.PromptTemplate, error)
}

type knowledgeBaseRepository struct {
	pool *pgxpool.Pool
}

func NewKnowledgeBaseRepository(pool *pgxpool.Pool) KnowledgeBaseRepository {
	return &knowledgeBaseRepository{pool: pool}
}

func (r *knowledgeBaseRepository) ListActiveByCategory(ctx context.Context, categoryID string, limit int) ([]domain.KnowledgeBaseEntry, error) {
	if limit <= 0 {
		limit = 3
	}
	const query = `
        SELECT id, category_id, title, content, is_active, created_at
        FROM knowledge_base WHERE category_id=$1 AND is_active
        ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, categoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.KnowledgeBaseEntry
	for rows.Next() {
		var e domain.KnowledgeBaseEntry
		if err := rows.Scan(&e.ID, &e.CategoryID, &e.Title, &e.Content, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

type promptTemplateRepository struct {
	pool *pgxpool.Pool
}

func NewPromptTemplateRepository(pool *pgxpool.Pool) PromptTemplateRepository {
	return &promptTemplateRepository{pool: pool}
}

func (r *promptTemplateRepository) GetActiveByCategory(ctx context.Context, categoryID string) (*domain.PromptTemplate, error) {
	const query = `
        SELECT id, category_id, name, system_prompt, user_prompt_template, is_active
        FROM prompt_templates WHERE category_id=$1 AND is_active LIMIT 1`
	var t domain.PromptTemplate
	if err := r.pool.QueryRow(ctx, query, categoryID).Scan(
		&t.ID,
		&t.CategoryID,
		&t.Name,
		&t.SystemPrompt,
		&t.UserPromptTemplate,
		&t.IsActive,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
