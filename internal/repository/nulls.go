package repository

import (
	"github.com/guregu/null/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func outcomeParam(o domain.SLAOutcome) null.Bool {
	if met := o.Bool(); met != nil {
		return null.BoolFrom(*met)
	}
	return null.Bool{}
}

func outcomeFromColumn(b null.Bool) domain.SLAOutcome {
	if !b.Valid {
		return domain.SLAUnevaluated
	}
	return domain.OutcomeOf(b.Bool)
}

func sentimentParam(s *domain.Sentiment) null.String {
	if s == nil {
		return null.String{}
	}
	return null.StringFrom(string(*s))
}

func sentimentFromColumn(s null.String) *domain.Sentiment {
	if !s.Valid {
		return nil
	}
	parsed := domain.ParseSentiment(s.String)
	return &parsed
}
