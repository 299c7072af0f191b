package catalogapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sentimentscope/catalog/internal/domain"
	"github.com/sentimentscope/catalog/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{BaseURL: baseURL}, cache.NewMemoryCache(), nil)
}

func TestNewClient(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "https://api.example.com/"}, nil, nil)

	assert.NotNil(t, client)
	assert.Equal(t, "https://api.example.com", client.BaseURL())
	assert.Equal(t, DefaultTimeout, client.timeout)
	assert.Equal(t, DefaultProbeTimeout, client.probeTimeout)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.NotNil(t, client.logger)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	client := NewClient(ClientConfig{}, nil, nil)
	assert.Equal(t, DefaultBaseURL, client.BaseURL())
}

func TestCall_CachesGETResponses(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/brands", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"brand_id":1,"brand_name":"Apple"}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	first, err := client.GetBrands(ctx)
	require.NoError(t, err)
	second, err := client.GetBrands(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, []domain.BrandRecord{{BrandID: 1, BrandName: "Apple"}}, second)
}

func TestCall_NoCacheBypassesCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	var out map[string]bool
	require.NoError(t, client.Call(ctx, "/thing", RequestOptions{}, &out))
	require.NoError(t, client.Call(ctx, "/thing", RequestOptions{NoCache: true}, &out))
	require.NoError(t, client.Call(ctx, "/thing", RequestOptions{}, &out))

	// second call skipped the cache, third hit the entry stored by the first
	assert.Equal(t, int32(2), hits.Load())
	assert.True(t, out["ok"])
}

func TestCall_ClearCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	_, err := client.GetPhones(ctx, 200)
	require.NoError(t, err)
	client.ClearCache()
	_, err = client.GetPhones(ctx, 200)
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}

func TestCall_POSTIsNeverCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "value", payload["key"])

		w.Write([]byte(`{"status":"done"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	var out map[string]string
	opts := RequestOptions{Method: "post", Body: map[string]string{"key": "value"}}
	require.NoError(t, client.Call(ctx, "/run", opts, &out))
	require.NoError(t, client.Call(ctx, "/run", opts, &out))

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "done", out["status"])
}

func TestCall_SetsRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Call(context.Background(), "/", RequestOptions{Headers: map[string]string{"X-Extra": "yes"}}, nil)
	require.NoError(t, err)
}

func TestCall_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, cache.NewMemoryCache(), nil)

	start := time.Now()
	_, err := client.GetBrands(context.Background())

	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCall_ParentCancellationIsNotTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetBrands(ctx)

	assert.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTimeout))
}

func TestCall_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetBrands(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Internal Server Error", apiErr.Status)
	assert.ErrorIs(t, err, domain.ErrAPIFailure)
	assert.Equal(t, "API error 500: Internal Server Error", err.Error())
}

func TestCall_ErrorsAreNotCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	_, err := client.GetBrands(ctx)
	require.Error(t, err)

	brands, err := client.GetBrands(ctx)
	require.NoError(t, err)
	assert.Empty(t, brands)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCall_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.GetPhones(context.Background(), 200)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestCall_RequestCreationError(t *testing.T) {
	client := newTestClient("://invalid-url")

	_, err := client.GetBrands(context.Background())
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	t.Run("reachable on 2xx", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			assert.Equal(t, "/", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		require.NoError(t, client.Ping(context.Background()))
		require.NoError(t, client.Ping(context.Background()))

		// probes are never served from cache
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("unreachable server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client := newTestClient(url)
		assert.ErrorIs(t, client.Ping(context.Background()), domain.ErrAPIFailure)
	})

	t.Run("probe uses short timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		client := NewClient(ClientConfig{
			BaseURL:      server.URL,
			Timeout:      time.Minute,
			ProbeTimeout: 50 * time.Millisecond,
		}, nil, nil)

		assert.ErrorIs(t, client.Ping(context.Background()), domain.ErrTimeout)
	})
}

func TestGetPhones(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/phones", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			{"phone_id": 7, "phone_name": "Pixel 8", "brand_name": "Google", "review_count": 12,
			 "avg_sentiment_rating": 4.2, "topics": "camera, battery"},
			{"phone_id": 8, "phone_name": "Galaxy A15", "brand_name": "Samsung", "review_count": 0,
			 "avg_sentiment_rating": null, "topics": null}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	phones, err := client.GetPhones(context.Background(), 200)

	require.NoError(t, err)
	require.Len(t, phones, 2)
	assert.Equal(t, int64(7), phones[0].PhoneID)
	require.NotNil(t, phones[0].AvgSentimentRating)
	assert.Equal(t, 4.2, *phones[0].AvgSentimentRating)
	assert.Equal(t, "camera, battery", phones[0].Topics)
	assert.Nil(t, phones[1].AvgSentimentRating)
	assert.Equal(t, "", phones[1].Topics)
}

func TestGetSentiments(t *testing.T) {
	t.Run("decodes breakdown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sentiments", r.URL.Path)
			assert.Equal(t, "42", r.URL.Query().Get("phone_id"))
			w.Write([]byte(`{"sentiments":{"positive":{"count":8,"percentage":80},"negative":{"count":2,"percentage":20}}}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		got, err := client.GetSentiments(context.Background(), 42)

		require.NoError(t, err)
		assert.Equal(t, domain.SentimentBreakdown{
			"positive": {Count: 8, Percentage: 80},
			"negative": {Count: 2, Percentage: 20},
		}, got)
	})

	t.Run("missing sentiments key yields empty breakdown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		got, err := client.GetSentiments(context.Background(), 1)

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestGetPhoneDetails(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/phones/3/complete", r.URL.Path)
			w.Write([]byte(`{
				"phone": {"phone_id": 3, "phone_name": "iPhone 15", "brand_name": "Apple"},
				"reviews": [{"review_id": 1, "review_text": "great"}],
				"sentiments": {"positive": {"count": 1, "percentage": 100}},
				"topics": [{"topic_id": 9, "topic_label": "camera", "representative_terms": "camera, photo"}]
			}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		details, err := client.GetPhoneDetails(context.Background(), "3")

		require.NoError(t, err)
		assert.Equal(t, "iPhone 15", details.Phone.PhoneName)
		assert.Len(t, details.Reviews, 1)
		assert.Equal(t, 1, details.Sentiments["positive"].Count)
		assert.Equal(t, "camera", details.Topics[0].TopicLabel)
	})

	t.Run("404 maps to product not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		details, err := client.GetPhoneDetails(context.Background(), "missing")

		assert.Nil(t, details)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
		assert.ErrorIs(t, err, domain.ErrAPIFailure)
	})
}

func TestSearch(t *testing.T) {
	brandID := int64(4)
	tests := []struct {
		name   string
		params domain.SearchParams
		want   map[string]string
		absent []string
	}{
		{
			name:   "query only",
			params: domain.SearchParams{Query: "pixel"},
			want:   map[string]string{"query": "pixel"},
			absent: []string{"sentiment_filter", "brand_filter"},
		},
		{
			name:   "all filters",
			params: domain.SearchParams{Query: "pro max", Sentiment: domain.SentimentPositive, BrandID: &brandID},
			want:   map[string]string{"query": "pro max", "sentiment_filter": "positive", "brand_filter": "4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search", r.URL.Path)
				q := r.URL.Query()
				for k, v := range tt.want {
					assert.Equal(t, v, q.Get(k), k)
				}
				for _, k := range tt.absent {
					assert.False(t, q.Has(k), k)
				}
				w.Write([]byte(`{"phones":[{"phone_id":1,"phone_name":"Pixel 8","brand_name":"Google"}]}`))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			phones, err := client.Search(context.Background(), tt.params)

			require.NoError(t, err)
			require.Len(t, phones, 1)
			assert.Equal(t, "Pixel 8", phones[0].PhoneName)
		})
	}
}

func TestGetStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		w.Write([]byte(`{"reviews":120,"processed_sentiments":118,"topics":14,"brands":5,"phones":20}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	stats, err := client.GetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &domain.StatsResponse{
		Reviews: 120, ProcessedSentiments: 118, Topics: 14, Brands: 5, Phones: 20,
	}, stats)
}

func TestRateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, RequestsPerSecond: 20, Burst: 1}, nil, nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, client.Call(ctx, "/", RequestOptions{}, nil))
	}

	// burst of one then two waits of 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestReadLimitedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 100; i++ {
			w.Write([]byte("0123456789"))
		}
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := readLimitedBody(resp.Body, 100)
	require.NoError(t, err)
	assert.Len(t, body, 100)
}
