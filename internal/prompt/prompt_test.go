package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		vars     Vars
		want     string
	}{
		{"all placeholders", "Title: {title}\n{content}", Vars{"title": "Login fails", "content": "Cannot log in"}, "Title: Login fails\nCannot log in"},
		{"repeated placeholder", "{a}-{a}", Vars{"a": "x"}, "x-x"},
		{"unknown left intact", "Hello {name} {missing}", Vars{"name": "Kim"}, "Hello Kim {missing}"},
		{"values not re-expanded", "{content}", Vars{"content": "see {title}", "title": "boom"}, "see {title}"},
		{"empty value", "[{knowledge_base}]", Vars{"knowledge_base": ""}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Build(tt.template, tt.vars); got != tt.want {
				t.Fatalf("Build = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	c := Default()
	if got := c.SystemPrompt(RoleCategoryClassifier); !strings.Contains(got, "categoryName") {
		t.Fatalf("classifier prompt lacks JSON contract: %q", got)
	}
	if got := c.SystemPrompt(Role("translator")); got != fallbackSystemPrompt {
		t.Fatalf("unknown role prompt = %q", got)
	}
}

func TestKnowledgeBaseContext(t *testing.T) {
	t.Parallel()

	c := Default()
	if got := c.KnowledgeBaseContext(nil); got != "" {
		t.Fatalf("empty context = %q", got)
	}

	got := c.KnowledgeBaseContext([]domain.KnowledgeBaseEntry{
		{Title: "Reset password", Content: "Use the forgot password link."},
		{Title: "2FA", Content: "Open the security settings."},
	})
	want := "Reference material:\n[Reference 1] Reset password\nUse the forgot password link.\n\n[Reference 2] 2FA\nOpen the security settings."
	if got != want {
		t.Fatalf("context =\n%s\nwant\n%s", got, want)
	}
}

func TestCategoryListAndClassificationPrompt(t *testing.T) {
	t.Parallel()

	c := Default()
	cats := []domain.Category{{Name: "Billing"}, {Name: "Account"}, {Name: "Technical"}}
	if got := c.CategoryList(cats); got != "Choose one of the following categories: Billing, Account, Technical" {
		t.Fatalf("category list = %q", got)
	}

	got := c.ClassificationPrompt(cats, "Charged twice", "My card was billed two times")
	for _, want := range []string{"Billing, Account, Technical", "Title: Charged twice", "Content: My card was billed two times"} {
		if !strings.Contains(got, want) {
			t.Errorf("classification prompt missing %q:\n%s", want, got)
		}
	}
}

func TestLoadOverridesBuiltIn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	override := "system:\n  customer-support: Answer in one sentence.\nlabels:\n  uncategorized: General\n"
	if err := os.WriteFile(path, []byte(override), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.SystemPrompt(RoleCustomerSupport); got != "Answer in one sentence." {
		t.Fatalf("support prompt = %q", got)
	}
	if c.Uncategorized() != "General" {
		t.Fatalf("uncategorized = %q", c.Uncategorized())
	}
	if !strings.Contains(c.SystemPrompt(RoleSentimentAnalyzer), "sentiment") {
		t.Fatal("non-overridden prompt should keep the built-in text")
	}
	if !strings.Contains(c.AnswerTemplate(), "{knowledge_base}") {
		t.Fatal("answer template should fall back to the built-in one")
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("system: [unterminated")); err == nil {
		t.Fatal("expected decode error")
	}
}
