package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()
	tm := NewTokenManager("secret", "helpdesk")
	token, expiresAt, err := tm.GenerateToken("agent-1", domain.RoleAgent, 10*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) > 10*time.Minute {
		t.Errorf("expiresAt = %v", expiresAt)
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.SubjectID != "agent-1" || claims.Role != domain.RoleAgent {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseTokenRejects(t *testing.T) {
	t.Parallel()
	tm := NewTokenManager("secret", "helpdesk")

	expired := NewTokenManager("secret", "helpdesk")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	oldToken, _, _ := expired.GenerateToken("u-1", domain.RoleCustomer, time.Hour)

	otherIssuer, _, _ := NewTokenManager("secret", "someone-else").GenerateToken("u-1", domain.RoleCustomer, time.Hour)
	otherSecret, _, _ := NewTokenManager("different", "helpdesk").GenerateToken("u-1", domain.RoleCustomer, time.Hour)

	tests := map[string]string{
		"expired":      oldToken,
		"wrong issuer": otherIssuer,
		"wrong secret": otherSecret,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		if _, err := tm.ParseToken(token); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer  ", "", false},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, got, err)
		}
		if err != nil && !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			t.Errorf("BearerToken(%q) err code = %v", tt.header, err)
		}
	}
}

type stubUsers struct {
	users map[string]domain.User
}

func (s stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (s stubUsers) ListAvailableAgents(context.Context) ([]domain.User, error) { return nil, nil }

func (s stubUsers) ListByRoles(context.Context, ...domain.Role) ([]domain.User, error) {
	return nil, nil
}

func (s stubUsers) UpdatePresence(context.Context, string, bool, bool, time.Time) error { return nil }

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", "")
	users := stubUsers{users: map[string]domain.User{
		"cust-1":  {ID: "cust-1", Role: domain.RoleCustomer},
		"agent-1": {ID: "agent-1", Role: domain.RoleAgent},
	}}
	mw := NewAuthMiddleware(tm, users)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if de := apperrors.ToDomainError(err); de != nil {
				return c.SendStatus(de.HTTPStatus)
			}
			return c.SendStatus(http.StatusInternalServerError)
		},
	})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(string(p.Actor().Role))
	})
	app.Get("/staff", mw.Handle, RequireStaff(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	// A stale role claim does not matter; the stored role does.
	customerToken, _, _ := tm.GenerateToken("cust-1", domain.RoleAdmin, time.Hour)
	agentToken, _, _ := tm.GenerateToken("agent-1", domain.RoleAgent, time.Hour)
	ghostToken, _, _ := tm.GenerateToken("ghost", domain.RoleAgent, time.Hour)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"customer", "/me", customerToken, http.StatusOK},
		{"unknown user", "/me", ghostToken, http.StatusUnauthorized},
		{"customer on staff route", "/staff", customerToken, http.StatusForbidden},
		{"agent on staff route", "/staff", agentToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
