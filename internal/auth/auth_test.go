package auth

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Gate decisions
// ---------------------------------------------------------------------------

func TestGateDisabledAcceptsAll(t *testing.T) {
	g := NewGate(false, "")
	if d := g.Check(""); d != Accepted {
		t.Errorf("Check(\"\") = %v, want Accepted", d)
	}
	if d := g.Check("anything"); d != Accepted {
		t.Errorf("Check(anything) = %v, want Accepted", d)
	}
}

func TestGateMisconfiguredFailsClosed(t *testing.T) {
	g := NewGate(true, "")
	d := g.Check("whatever")
	if d != RejectedMisconfigured {
		t.Fatalf("Check = %v, want RejectedMisconfigured", d)
	}
	if d.Status() != 503 {
		t.Errorf("Status = %d, want 503", d.Status())
	}
	if d.Message() != "authentication misconfigured" {
		t.Errorf("Message = %q, want 'authentication misconfigured'", d.Message())
	}
}

func TestGateValidToken(t *testing.T) {
	g := NewGate(true, "s3cret")
	if d := g.Check("s3cret"); d != Accepted {
		t.Errorf("Check(correct) = %v, want Accepted", d)
	}
	if d := g.Check(" s3cret \n"); d != Accepted {
		t.Errorf("Check(padded) = %v, want Accepted after trimming", d)
	}
}

func TestGateInvalidToken(t *testing.T) {
	g := NewGate(true, "s3cret")
	d := g.Check("wrong")
	if d != RejectedInvalid {
		t.Fatalf("Check = %v, want RejectedInvalid", d)
	}
	if d.Status() != 401 {
		t.Errorf("Status = %d, want 401", d.Status())
	}
	if d.Message() != "invalid token" {
		t.Errorf("Message = %q, want 'invalid token'", d.Message())
	}
}

func TestGateEmptyCandidate(t *testing.T) {
	g := NewGate(true, "s3cret")
	if d := g.Check(""); d != RejectedInvalid {
		t.Errorf("Check(\"\") = %v, want RejectedInvalid", d)
	}
}

// ---------------------------------------------------------------------------
// Credential extraction
// ---------------------------------------------------------------------------

func TestExtractTokenQueryParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/?token=abc123", nil)
	if got := ExtractToken(r); got != "abc123" {
		t.Errorf("ExtractToken = %q, want abc123", got)
	}
}

func TestExtractTokenBearerHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	if got := ExtractToken(r); got != "abc123" {
		t.Errorf("ExtractToken = %q, want abc123", got)
	}
}

func TestExtractTokenBearerCaseInsensitive(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "bearer abc123")
	if got := ExtractToken(r); got != "abc123" {
		t.Errorf("ExtractToken = %q, want abc123", got)
	}
}

func TestExtractTokenQueryWinsOverHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/?token=fromquery", nil)
	r.Header.Set("Authorization", "Bearer fromheader")
	if got := ExtractToken(r); got != "fromquery" {
		t.Errorf("ExtractToken = %q, want fromquery", got)
	}
}

func TestExtractTokenMissing(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if got := ExtractToken(r); got != "" {
		t.Errorf("ExtractToken = %q, want empty", got)
	}
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if got := ExtractToken(r); got != "" {
		t.Errorf("ExtractToken = %q, want empty for non-bearer scheme", got)
	}
}

func TestAdmitEndToEnd(t *testing.T) {
	g := NewGate(true, "s3cret")

	r := httptest.NewRequest("GET", "/?token=s3cret", nil)
	if d := g.Admit(r); d != Accepted {
		t.Errorf("Admit(query) = %v, want Accepted", d)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	if d := g.Admit(r); d != Accepted {
		t.Errorf("Admit(header) = %v, want Accepted", d)
	}

	r = httptest.NewRequest("GET", "/?token=nope", nil)
	if d := g.Admit(r); d != RejectedInvalid {
		t.Errorf("Admit(wrong) = %v, want RejectedInvalid", d)
	}
}

// ---------------------------------------------------------------------------
// Secret generation and persistence
// ---------------------------------------------------------------------------

func TestGenerateSecretShape(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(secret) != tokenLength {
		t.Errorf("length = %d, want %d", len(secret), tokenLength)
	}
	for _, c := range secret {
		if !strings.ContainsRune(alphanumeric, c) {
			t.Errorf("secret contains non-alphanumeric %q", c)
		}
	}
}

func TestGenerateSecretUnique(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	b, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if a == b {
		t.Error("two generated secrets are identical")
	}
}

func TestLoadOrGenerateSecret(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateSecret(dir)
	if err != nil {
		t.Fatalf("LoadOrGenerateSecret: %v", err)
	}
	if first == "" {
		t.Fatal("generated secret is empty")
	}

	// File written with 0600.
	info, err := os.Stat(filepath.Join(dir, "token"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %o, want 0600", perm)
	}

	// Second call loads rather than regenerates.
	second, err := LoadOrGenerateSecret(dir)
	if err != nil {
		t.Fatalf("LoadOrGenerateSecret: %v", err)
	}
	if second != first {
		t.Errorf("second load = %q, want the persisted %q", second, first)
	}
}

func TestLoadSecretNeverGenerates(t *testing.T) {
	dir := t.TempDir()
	if got := LoadSecret(dir); got != "" {
		t.Errorf("LoadSecret on empty dir = %q, want empty", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "token")); !os.IsNotExist(err) {
		t.Error("LoadSecret must not create the token file")
	}

	if err := os.WriteFile(filepath.Join(dir, "token"), []byte(" tok \n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := LoadSecret(dir); got != "tok" {
		t.Errorf("LoadSecret = %q, want trimmed persisted value", got)
	}
}

func TestLoadOrGenerateSecretExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "token"), []byte("persisted-secret\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	secret, err := LoadOrGenerateSecret(dir)
	if err != nil {
		t.Fatalf("LoadOrGenerateSecret: %v", err)
	}
	if secret != "persisted-secret" {
		t.Errorf("secret = %q, want the trimmed persisted value", secret)
	}
}
