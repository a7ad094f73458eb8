package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/gorestruct/internal/cache"
	"github.com/hyperifyio/gorestruct/internal/llm"
	"github.com/hyperifyio/gorestruct/internal/page"
)

// ErrBackendUnavailable indicates the model path has no usable inference
// client. Callers treat it like any other model failure and fall back.
var ErrBackendUnavailable = errors.New("classify: model backend unavailable")

// Model classifies blocks through an OpenAI-compatible chat backend under a
// strict JSON contract. Every transport or contract failure surfaces as an
// error; deciding whether to fall back belongs to the caller.
type Model struct {
	Client    llm.Client
	Reference string
	// Threshold is the minimum confidence to keep a model label; anything
	// below it becomes AbstainLabel.
	Threshold     float64
	AbstainLabel  Label
	FallbackLabel Label
	Cache         *cache.PredictionCache

	// sleepFunc allows tests to skip the retry backoff.
	sleepFunc func(time.Duration)
}

type modelResponse struct {
	Labels []modelLabel `json:"labels"`
}

type modelLabel struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify labels the blocks via the backend. Blocks without text never
// reach the backend; they are reported as the fallback label with zero
// confidence. The response must cover every prompted block exactly once.
func (m *Model) Classify(ctx context.Context, blocks []page.Block) ([]Prediction, error) {
	if m == nil || m.Client == nil {
		return nil, ErrBackendUnavailable
	}
	if strings.TrimSpace(m.Reference) == "" {
		return nil, fmt.Errorf("empty model reference: %w", ErrBackendUnavailable)
	}

	preds := make([]Prediction, len(blocks))
	var prompted []int
	for i, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			preds[i] = Prediction{Label: m.fallback(), Confidence: 0, Source: SourceModel}
			continue
		}
		prompted = append(prompted, i)
	}
	if len(prompted) == 0 {
		return preds, nil
	}

	sys := buildSystemMessage()
	user := buildUserMessage(blocks, prompted)
	raw, err := m.complete(ctx, sys, user)
	if err != nil {
		return nil, err
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("classify: parse model response: %w", err)
	}
	seen := make(map[int]bool, len(resp.Labels))
	for _, ml := range resp.Labels {
		if ml.Index < 0 || ml.Index >= len(prompted) {
			return nil, fmt.Errorf("classify: response index %d out of range", ml.Index)
		}
		if seen[ml.Index] {
			return nil, fmt.Errorf("classify: duplicate response index %d", ml.Index)
		}
		seen[ml.Index] = true
		label, ok := ParseLabel(ml.Label)
		if !ok || label == Abstain {
			return nil, fmt.Errorf("classify: label %q outside contract", ml.Label)
		}
		if ml.Confidence < m.Threshold {
			label = m.abstain()
		}
		preds[prompted[ml.Index]] = Prediction{Label: label, Confidence: ml.Confidence, Source: SourceModel}
	}
	if len(seen) != len(prompted) {
		return nil, fmt.Errorf("classify: response covered %d of %d blocks", len(seen), len(prompted))
	}
	return preds, nil
}

// complete runs the chat call with a cache in front and one retry behind it.
func (m *Model) complete(ctx context.Context, sys, user string) (string, error) {
	key := cache.KeyFrom(m.Reference, sys+"\n\n"+user)
	if m.Cache != nil {
		if b, ok, _ := m.Cache.Get(ctx, key); ok {
			return string(b), nil
		}
	}
	req := openai.ChatCompletionRequest{
		Model: m.Reference,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.0,
		N:           1,
	}
	resp, err := m.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		sleep := m.sleepFunc
		if sleep == nil {
			sleep = time.Sleep
		}
		sleep(500 * time.Millisecond)
		resp, err = m.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("classify: chat completion: %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("classify: empty completion response")
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if m.Cache != nil {
		_ = m.Cache.Save(ctx, key, []byte(raw))
	}
	return raw, nil
}

func (m *Model) abstain() Label {
	if m.AbstainLabel != "" {
		return m.AbstainLabel
	}
	return Abstain
}

func (m *Model) fallback() Label {
	if m.FallbackLabel != "" {
		return m.FallbackLabel
	}
	return Body
}

func buildSystemMessage() string {
	return "You are a document structure classifier. Respond with strict JSON only: " +
		`{"labels":[{"index":int,"label":string,"confidence":number}]}. ` +
		"Allowed labels: title, section, list_item, caption, footnote, body. " +
		"Confidence is a number in [0,1]. Label every numbered block exactly once; " +
		"no other keys, no prose."
}

func buildUserMessage(blocks []page.Block, prompted []int) string {
	var sb strings.Builder
	sb.WriteString("Classify each numbered block of page text into exactly one structural label.\n")
	sb.WriteString("Blocks:\n")
	for k, idx := range prompted {
		b := blocks[idx]
		fmt.Fprintf(&sb, "%d. ", k)
		if b.FontSize > 0 {
			fmt.Fprintf(&sb, "[font %.1fpt", b.FontSize)
			if b.FontName != "" {
				fmt.Fprintf(&sb, " %s", b.FontName)
			}
			if b.Page > 0 {
				fmt.Fprintf(&sb, ", page %d", b.Page)
			}
			sb.WriteString("] ")
		}
		sb.WriteString(strings.ReplaceAll(b.Text, "\n", " "))
		sb.WriteString("\n")
	}
	return sb.String()
}
