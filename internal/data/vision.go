package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
	"github.com/marcAnfuso/api-casinos/internal/retry"
)

const defaultVisionModel = "gpt-4o-mini"

// classifyPrompt applies the strict proof ruleset: only completed,
// concretely-evidenced transactions count.
const classifyPrompt = `You are a payment-proof validator for deposit confirmations.

Decide whether the submitted content is valid proof of a COMPLETED payment.

Count as proof ONLY:
- A transaction receipt or transfer confirmation showing an amount AND a
  success indicator or reference/operation number.

Reject (is_proof=false) everything else, including:
- Account balance or home screens, even when they show money.
- Screenshots of chats or of this conversation.
- Pending/scheduled/failed transactions.
- Unrelated images, memes, documents.

Reply with JSON only: {"is_proof": bool, "confidence": "high"|"medium"|"low", "reason": "short rationale"}`

// visionClassifier implements the attachment classifier gateway on an
// OpenAI-compatible vision endpoint.
//
// Failure policy, preserved deliberately: no credential -> fail open;
// unreadable PDF content -> fail closed; provider outage after retries ->
// fail open. Availability wins over strictness except when the content
// itself cannot be read.
type visionClassifier struct {
	client *openai.Client
	model  string
	hc     *http.Client
	policy retry.Policy
}

// NewVisionClassifier creates the classifier gateway. An empty apiKey yields
// a gateway that skips classification and accepts everything.
func NewVisionClassifier(apiKey, baseURL, model string) repo.ClassifierRepo {
	c := &visionClassifier{
		model:  model,
		hc:     &http.Client{Timeout: 20 * time.Second},
		policy: retry.Policy{MaxAttempts: 3, Delay: 2 * time.Second},
	}
	if c.model == "" {
		c.model = defaultVisionModel
	}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		c.client = openai.NewClientWithConfig(cfg)
	}
	return c
}

func (c *visionClassifier) Classify(ctx context.Context, att *domain.Attachment) domain.Classification {
	if c.client == nil {
		return domain.Classification{IsProof: true, Confidence: domain.ConfidenceLow, Reason: "classification skipped: no credential configured"}
	}

	if isPDF(att) {
		text, err := c.pdfText(ctx, att.URL)
		if err != nil {
			log.Printf("[Classifier] pdf extraction failed for %s: %v", att.URL, err)
			return domain.Classification{IsProof: false, Confidence: domain.ConfidenceLow, Reason: "extraction failed"}
		}
		return c.classifyText(ctx, text)
	}
	return c.classifyImage(ctx, att.URL)
}

func (c *visionClassifier) classifyImage(ctx context.Context, imageURL string) domain.Classification {
	messages := []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: classifyPrompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    imageURL,
				Detail: openai.ImageURLDetailAuto,
			}},
		},
	}}
	return c.complete(ctx, messages)
}

func (c *visionClassifier) classifyText(ctx context.Context, text string) domain.Classification {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
		{Role: openai.ChatMessageRoleUser, Content: "Extracted document text:\n\n" + text},
	}
	return c.complete(ctx, messages)
}

func (c *visionClassifier) complete(ctx context.Context, messages []openai.ChatCompletionMessage) domain.Classification {
	var content string
	err := c.policy.Do(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: 0.1,
			MaxTokens:   200,
		})
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no response choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		log.Printf("[Classifier] provider unavailable, failing open: %v", err)
		return domain.Classification{IsProof: true, Confidence: domain.ConfidenceLow, Reason: "classifier unavailable"}
	}
	return parseVerdict(content)
}

// parseVerdict decodes the model's JSON verdict, tolerating code fences.
// Unparseable output is treated like provider unavailability: fail open.
func parseVerdict(content string) domain.Classification {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var verdict struct {
		IsProof    bool   `json:"is_proof"`
		Confidence string `json:"confidence"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &verdict); err != nil {
		log.Printf("[Classifier] unparseable verdict %q, failing open", content)
		return domain.Classification{IsProof: true, Confidence: domain.ConfidenceLow, Reason: "unparseable verdict"}
	}

	conf := domain.Confidence(verdict.Confidence)
	switch conf {
	case domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow:
	default:
		conf = domain.ConfidenceLow
	}
	return domain.Classification{IsProof: verdict.IsProof, Confidence: conf, Reason: verdict.Reason}
}

// pdfText downloads the attachment and extracts its text content.
func (c *visionClassifier) pdfText(ctx context.Context, fileURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	return extractPDFText(data)
}

func isPDF(att *domain.Attachment) bool {
	name := strings.ToLower(att.Name)
	if strings.HasSuffix(name, ".pdf") {
		return true
	}
	u := strings.ToLower(att.URL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.HasSuffix(u, ".pdf")
}
