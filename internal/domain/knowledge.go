package domain

import "time"

// Category groups tickets and selects knowledge base entries and prompt templates.
type Category struct {
	ID          string
	Name        string
	Description *string
	SortOrder   int
	IsActive    bool
}

// KnowledgeBaseEntry is reference material injected into drafted answers.
type KnowledgeBaseEntry struct {
	ID         string
	CategoryID *string
	Title      string
	Content    string
	IsActive   bool
	CreatedAt  time.Time
}

// PromptTemplate overrides the default answer prompt for a category.
type PromptTemplate struct {
	ID                 string
	CategoryID         *string
	Name               string
	SystemPrompt       string
	UserPromptTemplate string
	IsActive           bool
}
