package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteClassifier calls an external NLU endpoint. Any failure degrades to an
// unclear result so the conversation re-prompts instead of erroring out.
type RemoteClassifier struct {
	endpoint string
	client   *http.Client
	fallback *RuleClassifier
}

type RemoteConfig struct {
	Endpoint string
	Timeout  time.Duration
}

func NewRemoteClassifier(cfg RemoteConfig) *RemoteClassifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteClassifier{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		fallback: NewRuleClassifier(),
	}
}

type nluRequest struct {
	Utterance  string `json:"utterance"`
	LastIntent string `json:"last_intent,omitempty"`
	TurnCount  int    `json:"turn_count"`
	Language   string `json:"language,omitempty"`
}

type nluResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (c *RemoteClassifier) Classify(ctx context.Context, utterance string, conv Context) (Result, error) {
	body, err := json.Marshal(nluRequest{
		Utterance:  utterance,
		LastIntent: string(conv.LastIntent),
		TurnCount:  conv.TurnCount,
		Language:   conv.Language,
	})
	if err != nil {
		return Result{Intent: Unclear}, fmt.Errorf("encode nlu request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Intent: Unclear}, fmt.Errorf("build nlu request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Degrade to the rule vocabulary rather than stalling the turn.
		return c.fallback.Classify(ctx, utterance, conv)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.fallback.Classify(ctx, utterance, conv)
	}

	var out nluResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return c.fallback.Classify(ctx, utterance, conv)
	}

	switch Intent(out.Intent) {
	case PayNow, RequestCallback, Dispute, InfoRequest, Unclear:
		return Result{Intent: Intent(out.Intent), Confidence: out.Confidence}, nil
	default:
		return Result{Intent: Unclear, Confidence: 0}, nil
	}
}

// NewClassifier selects an implementation at configuration time. "auto" uses
// the remote endpoint when one is configured and falls back to rules.
func NewClassifier(mode, endpoint string, timeout time.Duration) (Classifier, error) {
	switch mode {
	case "", "auto":
		if endpoint != "" {
			return NewRemoteClassifier(RemoteConfig{Endpoint: endpoint, Timeout: timeout}), nil
		}
		return NewRuleClassifier(), nil
	case "rules":
		return NewRuleClassifier(), nil
	case "remote":
		if endpoint == "" {
			return nil, fmt.Errorf("classifier mode %q requires an NLU endpoint", mode)
		}
		return NewRemoteClassifier(RemoteConfig{Endpoint: endpoint, Timeout: timeout}), nil
	default:
		return nil, fmt.Errorf("invalid classifier mode: %q (expected auto|rules|remote)", mode)
	}
}
