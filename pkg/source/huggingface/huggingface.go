// Package huggingface adapts the HuggingFace Inference API's serverless
// feature-extraction and zero-shot-classification endpoints into
// source.EmbeddingSource, source.NLISource, source.ClassifySource, and
// source.StanceSource.
//
// There is no teacher equivalent — glyphoxa never talks to HuggingFace — so
// this adapter is grounded directly on the reference client (a plain
// net/http + encoding/json REST wrapper, no SDK) and imitates the teacher's
// net/http provider idiom (see pkg/provider/tts/elevenlabs) for client
// construction, error mapping, and JSON request/response shapes.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/types"
)

const defaultBaseURL = "https://api-inference.huggingface.co"

// Source talks to the HuggingFace Inference API's serverless endpoints.
type Source struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the default Inference API base URL, for testing
// against a local server.
func WithBaseURL(url string) Option {
	return func(s *Source) { s.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.http = c }
}

// WithTimeout sets the HTTP client's request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) { s.http.Timeout = d }
}

// New creates a Source. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Source, error) {
	if apiKey == "" {
		return nil, &rerr.Error{Kind: rerr.Configuration, Message: "huggingface: apiKey must not be empty"}
	}
	s := &Source{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Name implements source.EmbeddingSource/NLISource/ClassifySource/StanceSource.
func (s *Source) Name() string { return "huggingface" }

// ---- embeddings (feature-extraction pipeline) ----

type embedRequest struct {
	Inputs any `json:"inputs"`
}

// Embed implements source.EmbeddingSource.
func (s *Source) Embed(ctx context.Context, text, model string) (types.Embedding, error) {
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", s.baseURL, model)

	var values [][]float32
	if err := s.post(ctx, url, embedRequest{Inputs: text}, &values, model); err != nil {
		return types.Embedding{}, err
	}
	if len(values) == 0 {
		return types.Embedding{}, &rerr.Error{Kind: rerr.EmptyResponse, Op: "embed", Model: model, Message: "huggingface: empty embedding response"}
	}
	return types.NewEmbedding(model, values[0]), nil
}

// EmbedBatch implements source.EmbeddingSource.
func (s *Source) EmbedBatch(ctx context.Context, texts []string, model string) ([]types.Embedding, error) {
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", s.baseURL, model)

	// Batch responses nest one level deeper than a single input: [[[f32]]].
	var values [][][]float32
	if err := s.post(ctx, url, embedRequest{Inputs: texts}, &values, model); err != nil {
		return nil, err
	}

	out := make([]types.Embedding, len(values))
	for i, v := range values {
		var vec []float32
		if len(v) > 0 {
			vec = v[0]
		}
		out[i] = types.NewEmbedding(model, vec)
	}
	return out, nil
}

// ---- NLI / zero-shot classification ----

type zeroShotParameters struct {
	CandidateLabels    []string `json:"candidate_labels"`
	HypothesisTemplate string   `json:"hypothesis_template,omitempty"`
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// InferNLI implements source.NLISource using a zero-shot classification
// model: the premise is the input sequence, and the entailment/neutral/
// contradiction labels are scored against it with the hypothesis as the
// template.
func (s *Source) InferNLI(ctx context.Context, premise, hypothesis, model string) (types.NLIResult, error) {
	url := fmt.Sprintf("%s/models/%s", s.baseURL, model)

	req := zeroShotRequest{
		Inputs: premise,
		Parameters: zeroShotParameters{
			CandidateLabels:    []string{"entailment", "neutral", "contradiction"},
			HypothesisTemplate: hypothesis,
		},
	}
	var resp zeroShotResponse
	if err := s.post(ctx, url, req, &resp, model); err != nil {
		return types.NLIResult{}, err
	}

	var entailment, neutral, contradiction float64
	for i, label := range resp.Labels {
		if i >= len(resp.Scores) {
			break
		}
		switch label {
		case "entailment":
			entailment = resp.Scores[i]
		case "neutral":
			neutral = resp.Scores[i]
		case "contradiction":
			contradiction = resp.Scores[i]
		}
	}
	return types.NewNLIResult(entailment, contradiction, neutral), nil
}

// InferNLIBatch implements source.NLISource by issuing one InferNLI call per
// pair; the Inference API's zero-shot endpoint has no native batch form for
// premise/hypothesis pairs (unlike feature-extraction, which does).
func (s *Source) InferNLIBatch(ctx context.Context, pairs [][2]string, model string) ([]types.NLIResult, error) {
	out := make([]types.NLIResult, len(pairs))
	for i, pair := range pairs {
		r, err := s.InferNLI(ctx, pair[0], pair[1], model)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// ClassifyZeroShot implements source.ClassifySource.
func (s *Source) ClassifyZeroShot(ctx context.Context, text string, labels []string, model string) (types.ClassifyResult, error) {
	url := fmt.Sprintf("%s/models/%s", s.baseURL, model)

	req := zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels},
	}
	var resp zeroShotResponse
	if err := s.post(ctx, url, req, &resp, model); err != nil {
		return types.ClassifyResult{}, err
	}

	scores := make(map[string]float64, len(resp.Labels))
	for i, label := range resp.Labels {
		if i >= len(resp.Scores) {
			break
		}
		scores[label] = resp.Scores[i]
	}
	return types.NewClassifyResult(labels, scores), nil
}

// ClassifyStance implements source.StanceSource by reusing the zero-shot
// endpoint with a fixed favor/against/neutral label set and a hypothesis
// template referencing the target, mirroring how InferNLI reuses the same
// endpoint for entailment/neutral/contradiction.
func (s *Source) ClassifyStance(ctx context.Context, text, target, model string) (types.StanceResult, error) {
	url := fmt.Sprintf("%s/models/%s", s.baseURL, model)

	req := zeroShotRequest{
		Inputs: text,
		Parameters: zeroShotParameters{
			CandidateLabels:    []string{"favor", "against", "neutral"},
			HypothesisTemplate: fmt.Sprintf("This text is {} %s.", target),
		},
	}
	var resp zeroShotResponse
	if err := s.post(ctx, url, req, &resp, model); err != nil {
		return types.StanceResult{}, err
	}

	var favor, against, neutral float64
	for i, label := range resp.Labels {
		if i >= len(resp.Scores) {
			break
		}
		switch label {
		case "favor":
			favor = resp.Scores[i]
		case "against":
			against = resp.Scores[i]
		case "neutral":
			neutral = resp.Scores[i]
		}
	}
	return types.NewStanceResult(target, favor, against, neutral), nil
}

// ---- transport ----

// post sends a JSON POST request and decodes the JSON response into out,
// mapping non-2xx statuses to rerr.Error per handleStatus.
func (s *Source) post(ctx context.Context, url string, body, out any, model string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &rerr.Error{Kind: rerr.JSON, Message: "huggingface: encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &rerr.Error{Kind: rerr.HTTPTransport, Message: "huggingface: build request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return &rerr.Error{Kind: rerr.HTTPTransport, Message: "huggingface: request failed", Cause: err}
	}
	defer resp.Body.Close()

	if err := handleStatus(resp, model); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &rerr.Error{Kind: rerr.JSON, Message: "huggingface: decode response", Cause: err}
	}
	return nil
}

// handleStatus maps a non-2xx HTTP response to a *rerr.Error.
func handleStatus(resp *http.Response, model string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &rerr.Error{Kind: rerr.AuthenticationFailed, Status: resp.StatusCode, Message: "huggingface: authentication failed"}
	case http.StatusNotFound:
		return &rerr.Error{Kind: rerr.ModelNotFound, Status: resp.StatusCode, Model: model, Message: "huggingface: model not found"}
	case http.StatusTooManyRequests:
		e := &rerr.Error{Kind: rerr.RateLimited, Status: resp.StatusCode, Model: model, Message: "huggingface: rate limited"}
		if ra := resp.Header.Get("retry-after"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				d := time.Duration(secs) * time.Second
				e.RetryAfter = &d
			}
		}
		return e
	case http.StatusServiceUnavailable:
		return &rerr.Error{Kind: rerr.API, Status: resp.StatusCode, Model: model, Message: "huggingface: model is loading, please retry"}
	default:
		return &rerr.Error{Kind: rerr.API, Status: resp.StatusCode, Model: model, Message: fmt.Sprintf("huggingface: API error (%d)", resp.StatusCode)}
	}
}

var (
	_ source.EmbeddingSource = (*Source)(nil)
	_ source.NLISource       = (*Source)(nil)
	_ source.ClassifySource  = (*Source)(nil)
	_ source.StanceSource    = (*Source)(nil)
)
