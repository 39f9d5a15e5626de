package huggingface_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source/huggingface"
	"github.com/emesal/ratatoskr/pkg/types"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := huggingface.New("")
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.Configuration, kind)
}

func TestName(t *testing.T) {
	s, err := huggingface.New("hf_test")
	require.NoError(t, err)
	assert.Equal(t, "huggingface", s.Name())
}

func TestEmbed_Single(t *testing.T) {
	want := []float32{0.1, 0.2, 0.3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipeline/feature-extraction/sentence-transformers/all-MiniLM-L6-v2", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([][]float32{want})
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := s.Embed(context.Background(), "hello", "sentence-transformers/all-MiniLM-L6-v2")
	require.NoError(t, err)
	assert.Equal(t, want, got.Values)
	assert.Equal(t, 3, got.Dimensions)
}

func TestEmbed_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([][]float32{})
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello", "some-model")
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.EmptyResponse, kind)
}

func TestEmbedBatch(t *testing.T) {
	vecs := [][][]float32{
		{{0.1, 0.2}},
		{{0.3, 0.4}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(vecs)
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := s.EmbedBatch(context.Background(), []string{"a", "b"}, "some-model")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float32{0.1, 0.2}, got[0].Values)
	assert.Equal(t, []float32{0.3, 0.4}, got[1].Values)
}

func TestInferNLI_PicksArgmax(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Parameters struct {
				CandidateLabels    []string `json:"candidate_labels"`
				HypothesisTemplate string   `json:"hypothesis_template"`
			} `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.ElementsMatch(t, []string{"entailment", "neutral", "contradiction"}, req.Parameters.CandidateLabels)
		assert.Equal(t, "it is raining", req.Parameters.HypothesisTemplate)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"labels": []string{"entailment", "contradiction", "neutral"},
			"scores": []float64{0.7, 0.2, 0.1},
		})
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := s.InferNLI(context.Background(), "the sky is dark", "it is raining", "facebook/bart-large-mnli")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got.Entailment, 1e-9)
	assert.InDelta(t, 0.2, got.Contradiction, 1e-9)
	assert.InDelta(t, 0.1, got.Neutral, 1e-9)
	assert.Equal(t, types.NLIEntailment, got.Label)
}

func TestInferNLIBatch_IssuesOneCallPerPair(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"labels": []string{"entailment", "neutral", "contradiction"},
			"scores": []float64{0.5, 0.3, 0.2},
		})
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := s.InferNLIBatch(context.Background(), [][2]string{{"p1", "h1"}, {"p2", "h2"}}, "facebook/bart-large-mnli")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, calls)
}

func TestClassifyZeroShot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"labels": []string{"sports", "politics"},
			"scores": []float64{0.9, 0.1},
		})
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := s.ClassifyZeroShot(context.Background(), "the match ended 2-1", []string{"sports", "politics"}, "facebook/bart-large-mnli")
	require.NoError(t, err)
	assert.Equal(t, "sports", got.TopLabel)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestClassifyStance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Parameters struct {
				CandidateLabels []string `json:"candidate_labels"`
			} `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.ElementsMatch(t, []string{"favor", "against", "neutral"}, req.Parameters.CandidateLabels)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"labels": []string{"against", "favor", "neutral"},
			"scores": []float64{0.6, 0.3, 0.1},
		})
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := s.ClassifyStance(context.Background(), "text", "climate policy", "facebook/bart-large-mnli")
	require.NoError(t, err)
	assert.Equal(t, "climate policy", got.Target)
	assert.Equal(t, "against", got.Label.String())
}

func TestHandleStatus_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_bad", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello", "some-model")
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.AuthenticationFailed, kind)
}

func TestHandleStatus_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello", "missing-model")
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.ModelNotFound, kind)
}

func TestHandleStatus_RateLimitedWithRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("retry-after", "5")
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello", "some-model")
	require.Error(t, err)
	rerrErr, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.RateLimited, rerrErr.Kind)
	require.NotNil(t, rerrErr.RetryAfter)
	assert.Equal(t, 5*time.Second, *rerrErr.RetryAfter)
}

func TestHandleStatus_ModelLoading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello", "some-model")
	require.Error(t, err)
	rerrErr, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.API, rerrErr.Kind)
	assert.True(t, rerrErr.Transient())
}

func TestEmbed_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("not-json"))
	}))
	defer srv.Close()

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "hello", "some-model")
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.JSON, kind)
}

func TestEmbed_ContextCancelled(t *testing.T) {
	stopCh := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-stopCh:
		}
	}))
	defer srv.Close()
	defer close(stopCh)

	s, err := huggingface.New("hf_test", huggingface.WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = s.Embed(ctx, "hello", "some-model")
	require.Error(t, err)
}
