package fraud

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

const scorerSystemPrompt = "You are a fraud detection expert. Analyze transactions and return a fraud " +
	"risk score between 0.0 (safe) and 1.0 (fraudulent). Respond with ONLY a number " +
	"between 0.0 and 1.0, nothing else."

// GeminiScorer scores transactions with a Gemini model.
type GeminiScorer struct {
	client *genai.Client
	model  string
}

// NewGeminiScorer creates a scorer backed by the Gemini API.
func NewGeminiScorer(ctx context.Context, apiKey, model string) (*GeminiScorer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiScorer{client: client, model: model}, nil
}

// Score sends the transaction summary to the model and parses the returned
// score. The caller bounds the call with a timeout context.
func (g *GeminiScorer) Score(ctx context.Context, tc *TransactionContext) (float64, error) {
	prompt := scorerSystemPrompt + "\n\n" + transactionPrompt(tc)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return 0, fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return 0, fmt.Errorf("empty response from model")
	}

	return parseScore(raw)
}

func transactionPrompt(tc *TransactionContext) string {
	return fmt.Sprintf(`Transaction Details:
- Amount: $%.2f
- Merchant: %s
- Location: %s
- Card Type: %s
- Time: %s
- Device: %s

Analyze this transaction for fraud risk. Consider:
1. Amount pattern
2. Merchant reputation
3. Location anomaly
4. Time of transaction
5. Overall suspicious patterns

Respond with ONLY a number between 0.0 and 1.0.`,
		tc.Amount, tc.Merchant, tc.Location, tc.CardType,
		tc.Timestamp.Format("2006-01-02 15:04:05 MST"), tc.DeviceID)
}

// parseScore extracts a [0,1] score from the model response, tolerating
// stray whitespace and Markdown fences the model occasionally adds.
func parseScore(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	score, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable score %q: %w", raw, err)
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}
