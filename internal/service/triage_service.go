package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/ai"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/prompt"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	triageTemperature    = 0.3
	triageMaxTokens      = 200
	answerTemperature    = 0.7
	answerMaxTokens      = 1000
	knowledgeBaseEntries = 3

	defaultSimilarLimit = 5
	maxSimilarLimit     = 20
)

const (
	reasonNotConfigured = "AI provider is not configured"
	reasonNoCategories  = "no active categories"
)

// CategoryClassification is the suggested category of a ticket. A nil
// CategoryID means no usable suggestion.
type CategoryClassification struct {
	CategoryID   *string
	CategoryName *string
	Confidence   float64
	Reason       string
}

// SentimentAnalysis is the detected tone of a text.
type SentimentAnalysis struct {
	Sentiment  domain.Sentiment
	Confidence float64
	Reason     string
}

// GenerateOptions tunes answer drafting. Zero values use the defaults.
type GenerateOptions struct {
	UseCustomPrompt bool
	Temperature     *float64
	MaxTokens       int
}

// AnswerDraft is a model-written reply for an agent to review.
type AnswerDraft struct {
	Response          string
	UsedKnowledgeBase bool
	KBEntriesUsed     int
}

// SimilarTicket is a search hit for FindSimilarTickets.
type SimilarTicket struct {
	ID         string
	Title      string
	Status     domain.TicketStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// TriageService wraps the AI provider with ticket context. Classification
// and sentiment never fail; answer drafting reports provider errors.
type TriageService struct {
	provider   ai.Provider
	prompts    *prompt.Catalog
	tickets    repository.TicketRepository
	categories repository.CategoryRepository
	knowledge  repository.KnowledgeBaseRepository
	templates  repository.PromptTemplateRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TriageDependencies bundles collaborators.
type TriageDependencies struct {
	Provider      ai.Provider
	Prompts       *prompt.Catalog
	TicketRepo    repository.TicketRepository
	CategoryRepo  repository.CategoryRepository
	KnowledgeRepo repository.KnowledgeBaseRepository
	TemplateRepo  repository.PromptTemplateRepository
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

func NewTriageService(deps TriageDependencies) *TriageService {
	if deps.Prompts == nil {
		deps.Prompts = prompt.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TriageService{
		provider:   deps.Provider,
		prompts:    deps.Prompts,
		tickets:    deps.TicketRepo,
		categories: deps.CategoryRepo,
		knowledge:  deps.KnowledgeRepo,
		templates:  deps.TemplateRepo,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

func (s *TriageService) available() bool {
	return s.provider != nil && s.provider.Available()
}

// ClassifyCategory suggests one of the active categories for a ticket.
func (s *TriageService) ClassifyCategory(ctx context.Context, title, content string) CategoryClassification {
	const capability = "classify"
	if !s.available() {
		s.metrics.RecordAICall(capability, "unavailable")
		return CategoryClassification{Reason: reasonNotConfigured}
	}

	categories, err := s.categories.ListActive(ctx)
	if err != nil {
		s.logger.Warn("load categories for classification", zap.Error(err))
		s.metrics.RecordAICall(capability, "error")
		return CategoryClassification{Reason: "categories could not be loaded"}
	}
	if len(categories) == 0 {
		s.metrics.RecordAICall(capability, "unavailable")
		return CategoryClassification{Reason: reasonNoCategories}
	}

	completion, err := s.provider.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: s.prompts.SystemPrompt(prompt.RoleCategoryClassifier)},
		{Role: ai.RoleUser, Content: s.prompts.ClassificationPrompt(categories, title, content)},
	}, ai.Options{Temperature: ai.Float(triageTemperature), MaxTokens: triageMaxTokens})
	if err != nil {
		s.logger.Warn("category classification failed", zap.String("kind", string(ai.KindOf(err))), zap.Error(err))
		s.metrics.RecordAICall(capability, "error")
		return CategoryClassification{Reason: "classification failed: " + providerMessage(err)}
	}

	var parsed struct {
		CategoryName string  `json:"categoryName"`
		Confidence   float64 `json:"confidence"`
		Reason       string  `json:"reason"`
	}
	if err := decodeModelJSON(completion.Text, &parsed); err != nil {
		s.logger.Warn("unparseable classification", zap.String("text", stringPreview(completion.Text, 200)), zap.Error(err))
		s.metrics.RecordAICall(capability, "error")
		return CategoryClassification{Reason: "classification response could not be parsed"}
	}

	result := CategoryClassification{
		Confidence: clampConfidence(parsed.Confidence),
		Reason:     parsed.Reason,
	}
	if name := strings.TrimSpace(parsed.CategoryName); name != "" {
		result.CategoryName = &name
		for _, category := range categories {
			if category.Name == name {
				id := category.ID
				result.CategoryID = &id
				break
			}
		}
	}
	s.metrics.RecordAICall(capability, "ok")
	return result
}

// AnalyzeSentiment labels text positive, neutral or negative. Failures
// yield neutral with zero confidence.
func (s *TriageService) AnalyzeSentiment(ctx context.Context, content string) SentimentAnalysis {
	const capability = "sentiment"
	neutral := SentimentAnalysis{Sentiment: domain.SentimentNeutral}
	if !s.available() {
		s.metrics.RecordAICall(capability, "unavailable")
		neutral.Reason = reasonNotConfigured
		return neutral
	}

	completion, err := s.provider.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: s.prompts.SystemPrompt(prompt.RoleSentimentAnalyzer)},
		{Role: ai.RoleUser, Content: s.prompts.SentimentPrompt(content)},
	}, ai.Options{Temperature: ai.Float(triageTemperature), MaxTokens: triageMaxTokens})
	if err != nil {
		s.logger.Warn("sentiment analysis failed", zap.String("kind", string(ai.KindOf(err))), zap.Error(err))
		s.metrics.RecordAICall(capability, "error")
		neutral.Reason = "sentiment analysis failed: " + providerMessage(err)
		return neutral
	}

	var parsed struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := decodeModelJSON(completion.Text, &parsed); err != nil {
		s.logger.Warn("unparseable sentiment", zap.String("text", stringPreview(completion.Text, 200)), zap.Error(err))
		s.metrics.RecordAICall(capability, "error")
		neutral.Reason = "sentiment response could not be parsed"
		return neutral
	}

	s.metrics.RecordAICall(capability, "ok")
	return SentimentAnalysis{
		Sentiment:  domain.ParseSentiment(parsed.Sentiment),
		Confidence: clampConfidence(parsed.Confidence),
		Reason:     parsed.Reason,
	}
}

// GenerateResponse drafts an answer for a ticket using the knowledge base
// of its category. Provider failures are returned as *ai.ProviderError.
func (s *TriageService) GenerateResponse(ctx context.Context, actor domain.Actor, ticketID string, opts GenerateOptions) (*AnswerDraft, error) {
	const capability = "generate"
	if err := access.Check(actor.Role, access.DraftResponse).Err(); err != nil {
		return nil, err
	}
	if !s.available() {
		s.metrics.RecordAICall(capability, "unavailable")
		return nil, ai.NotConfigured()
	}

	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if err := access.CheckTicket(actor, access.DraftResponse, ticket).Err(); err != nil {
		return nil, err
	}

	categoryName := s.prompts.Uncategorized()
	var entries []domain.KnowledgeBaseEntry
	if ticket.CategoryID != nil {
		category, err := s.categories.GetByID(ctx, *ticket.CategoryID)
		switch {
		case err == nil:
			categoryName = category.Name
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.MapError(err)
		}
		entries, err = s.knowledge.ListActiveByCategory(ctx, *ticket.CategoryID, knowledgeBaseEntries)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	systemPrompt := s.prompts.SystemPrompt(prompt.RoleCustomerSupport)
	userTemplate := s.prompts.AnswerTemplate()
	if opts.UseCustomPrompt && ticket.CategoryID != nil {
		tmpl, err := s.templates.GetActiveByCategory(ctx, *ticket.CategoryID)
		switch {
		case err == nil:
			systemPrompt = tmpl.SystemPrompt
			userTemplate = tmpl.UserPromptTemplate
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.MapError(err)
		}
	}

	userPrompt := prompt.Build(userTemplate, prompt.Vars{
		"title":          ticket.Title,
		"content":        ticket.Content,
		"category":       categoryName,
		"knowledge_base": s.prompts.KnowledgeBaseContext(entries),
	})

	callOpts := ai.Options{Temperature: ai.Float(answerTemperature), MaxTokens: answerMaxTokens}
	if opts.Temperature != nil {
		callOpts.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		callOpts.MaxTokens = opts.MaxTokens
	}

	completion, err := s.provider.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: strings.TrimSpace(userPrompt)},
	}, callOpts)
	if err != nil {
		s.metrics.RecordAICall(capability, "error")
		s.logger.Warn("answer generation failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("kind", string(ai.KindOf(err))),
			zap.Error(err))
		return nil, fmt.Errorf("generate response for ticket %s: %w", ticket.ID, err)
	}

	s.metrics.RecordAICall(capability, "ok")
	return &AnswerDraft{
		Response:          completion.Text,
		UsedKnowledgeBase: len(entries) > 0,
		KBEntriesUsed:     len(entries),
	}, nil
}

// FindSimilarTickets searches other tickets sharing words with the title of
// ticketID, resolved ones first. A zero limit means the default.
func (s *TriageService) FindSimilarTickets(ctx context.Context, actor domain.Actor, ticketID string, limit int) ([]SimilarTicket, error) {
	if err := access.Check(actor.Role, access.DraftResponse).Err(); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = defaultSimilarLimit
	}
	if limit < 1 || limit > maxSimilarLimit {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("limit must be between 1 and %d", maxSimilarLimit),
			map[string]any{"limit": limit},
		)
	}

	// No per-ticket scope check: any agent may search the whole queue, and
	// results carry titles but never ticket content.
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	keywords := titleKeywords(ticket.Title)
	if len(keywords) == 0 {
		return []SimilarTicket{}, nil
	}

	hits, err := s.tickets.SearchSimilar(ctx, repository.SimilarQuery{
		ExcludeID: ticket.ID,
		Keywords:  keywords,
		Limit:     limit,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	results := make([]SimilarTicket, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SimilarTicket{
			ID:         hit.ID,
			Title:      hit.Title,
			Status:     hit.Status,
			CreatedAt:  hit.CreatedAt,
			ResolvedAt: hit.ResolvedAt,
		})
	}
	return results, nil
}

// titleKeywords lowercases the title and keeps distinct words longer than two characters.
func titleKeywords(title string) []string {
	seen := map[string]bool{}
	var keywords []string
	for _, word := range strings.FieldsFunc(strings.ToLower(title), unicode.IsSpace) {
		if runeLen(word) <= 2 || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}

// decodeModelJSON parses the first JSON object in text. Models sometimes
// wrap it in prose or code fences.
func decodeModelJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return errors.New("no JSON object in model output")
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func providerMessage(err error) string {
	var pe *ai.ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
