package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointForModel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://model-yqv0epjw.api.baseten.co/environments/production/predict", EndpointForModel(""))
	assert.Equal(t, "https://model-abc123.api.baseten.co/environments/production/predict", EndpointForModel("abc123"))
}

func TestOrpheus_Synthesize(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 4800)
	var got orpheusRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write(pcm)
	}))
	t.Cleanup(srv.Close)

	o := NewOrpheus(OrpheusConfig{APIKey: "secret", Endpoint: srv.URL})
	res, err := o.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hello there.", Voice: "leah", MaxTokens: 800, Temperature: 0.8, RepetitionPenalty: 1.1,
	})
	require.NoError(t, err)

	assert.Equal(t, orpheusRequest{Voice: "leah", Prompt: "Hello there.", MaxTokens: 800, Temperature: 0.8, RepetitionPenalty: 1.1}, got)
	assert.Equal(t, "audio/wav", res.ContentType)
	assert.Equal(t, len(pcm), res.PCMBytes)
	assert.Len(t, res.Audio, 44+len(pcm))
}

func TestOrpheus_ErrorKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"not found", http.StatusNotFound, "no such model", KindNotFound},
		{"model missing", http.StatusBadRequest, `{"error":"Invalid MODEL_ID"}`, KindModelMissing},
		{"deactivated", http.StatusBadRequest, "Model is deactivated", KindInactive},
		{"needs activation", http.StatusNotFound, "This deployment needs to be activated", KindInactive},
		{"plain http", http.StatusInternalServerError, "boom", KindHTTP},
		{"rate limited", http.StatusTooManyRequests, "slow down", KindHTTP},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			_, err := NewOrpheus(OrpheusConfig{Endpoint: srv.URL}).Synthesize(context.Background(), SynthesisRequest{Text: "x"})
			require.Error(t, err)

			var be *BackendError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tc.want, be.Kind)
			assert.Equal(t, tc.status, be.StatusCode)
			assert.Equal(t, tc.body, be.Body)
			assert.Equal(t, tc.want != KindHTTP, be.Kind.Fallback())
		})
	}
}

func TestOrpheus_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	o := NewOrpheus(OrpheusConfig{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := o.Synthesize(context.Background(), SynthesisRequest{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestOrpheus_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOrpheus(OrpheusConfig{Endpoint: url}).Synthesize(context.Background(), SynthesisRequest{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}
