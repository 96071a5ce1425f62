package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/retry"
)

func testClassifier(baseURL string) *visionClassifier {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	return &visionClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  defaultVisionModel,
		hc:     &http.Client{Timeout: 5 * time.Second},
		policy: retry.Policy{MaxAttempts: 2, Delay: time.Millisecond},
	}
}

func completionResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

// Fail-open invariant: no credential means everything passes.
func TestClassify_NoCredentialFailsOpen(t *testing.T) {
	c := NewVisionClassifier("", "", "")
	got := c.Classify(context.Background(), &domain.Attachment{
		URL:  "https://files.example.com/anything.jpg",
		Kind: domain.AttachmentImage,
	})
	if !got.IsProof {
		t.Error("IsProof = false, want fail-open true")
	}
	if got.Confidence != domain.ConfidenceLow {
		t.Errorf("Confidence = %s, want low", got.Confidence)
	}
}

// Fail-closed invariant: unreadable PDF content rejects, and the provider is
// never consulted.
func TestClassify_UnreadablePDFFailsClosed(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a pdf document"))
	}))
	defer files.Close()

	providerCalls := 0
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
		w.Write([]byte(completionResponse(`{"is_proof": true, "confidence": "high", "reason": "x"}`)))
	}))
	defer provider.Close()

	c := testClassifier(provider.URL + "/v1")
	got := c.Classify(context.Background(), &domain.Attachment{
		URL:  files.URL + "/receipt.pdf",
		Name: "receipt.pdf",
		Kind: domain.AttachmentFile,
	})
	if got.IsProof {
		t.Error("IsProof = true for unreadable PDF, want fail-closed false")
	}
	if got.Reason != "extraction failed" {
		t.Errorf("Reason = %q, want extraction failed", got.Reason)
	}
	if providerCalls != 0 {
		t.Errorf("provider calls = %d, want 0", providerCalls)
	}
}

func TestClassify_PDFDownloadFailureFailsClosed(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer files.Close()

	c := testClassifier("http://unused.invalid/v1")
	got := c.Classify(context.Background(), &domain.Attachment{
		URL:  files.URL + "/gone.pdf",
		Name: "gone.pdf",
		Kind: domain.AttachmentFile,
	})
	if got.IsProof {
		t.Error("IsProof = true when PDF cannot be fetched, want false")
	}
}

func TestClassify_ImageVerdictParsed(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse(`{"is_proof": false, "confidence": "high", "reason": "account balance screen"}`)))
	}))
	defer provider.Close()

	c := testClassifier(provider.URL + "/v1")
	got := c.Classify(context.Background(), &domain.Attachment{
		URL:  "https://files.example.com/screen.jpg",
		Kind: domain.AttachmentImage,
	})
	if got.IsProof {
		t.Error("IsProof = true, want rejection")
	}
	if got.Confidence != domain.ConfidenceHigh {
		t.Errorf("Confidence = %s, want high", got.Confidence)
	}
	if got.Reason != "account balance screen" {
		t.Errorf("Reason = %q", got.Reason)
	}
}

func TestClassify_ProviderOutageFailsOpenAfterRetries(t *testing.T) {
	calls := 0
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer provider.Close()

	c := testClassifier(provider.URL + "/v1")
	got := c.Classify(context.Background(), &domain.Attachment{
		URL:  "https://files.example.com/receipt.jpg",
		Kind: domain.AttachmentImage,
	})
	if !got.IsProof {
		t.Error("IsProof = false on provider outage, want fail-open true")
	}
	if calls != 2 {
		t.Errorf("provider calls = %d, want retry budget of 2", calls)
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantProof bool
		wantConf  domain.Confidence
	}{
		{"plain json", `{"is_proof": true, "confidence": "medium", "reason": "receipt"}`, true, domain.ConfidenceMedium},
		{"fenced json", "```json\n{\"is_proof\": false, \"confidence\": \"high\", \"reason\": \"chat\"}\n```", false, domain.ConfidenceHigh},
		{"bad confidence falls back to low", `{"is_proof": true, "confidence": "certain", "reason": "x"}`, true, domain.ConfidenceLow},
		{"garbage fails open", "I think it is a receipt", true, domain.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseVerdict(tt.content)
			if got.IsProof != tt.wantProof || got.Confidence != tt.wantConf {
				t.Errorf("parseVerdict() = %+v, want proof=%v conf=%s", got, tt.wantProof, tt.wantConf)
			}
		})
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		att  domain.Attachment
		want bool
	}{
		{domain.Attachment{Name: "receipt.PDF"}, true},
		{domain.Attachment{URL: "https://x/files/doc.pdf?token=1"}, true},
		{domain.Attachment{URL: "https://x/files/doc.jpg", Name: "doc.jpg"}, false},
	}
	for _, tt := range tests {
		if got := isPDF(&tt.att); got != tt.want {
			t.Errorf("isPDF(%+v) = %v, want %v", tt.att, got, tt.want)
		}
	}
}

func TestExtractPDFText_RejectsGarbage(t *testing.T) {
	if _, err := extractPDFText([]byte("definitely not a pdf")); err == nil {
		t.Error("Expected error for non-PDF data")
	}
}
