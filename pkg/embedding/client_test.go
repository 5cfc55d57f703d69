package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"docqa-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string, batchSize int) Client {
	return NewClient(config.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    serverURL,
		Model:      "test-model",
		Dimensions: 3,
		BatchSize:  batchSize,
	})
}

// embeddingServer 按请求中 input 的条数返回平铺向量。
func embeddingServer(t *testing.T, gotBatches *[][]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if gotBatches != nil {
			*gotBatches = append(*gotBatches, req.Input)
		}

		var data []map[string]interface{}
		for i := range req.Input {
			data = append(data, map[string]interface{}{
				"embedding": []float64{float64(i), 0.5, 1.0},
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
}

func TestCreateEmbeddingsPreservesOrderAndCount(t *testing.T) {
	server := embeddingServer(t, nil)
	defer server.Close()

	client := newTestClient(server.URL, 10)
	texts := []string{"alpha", "beta", "gamma"}

	vectors, err := client.CreateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, vec := range vectors {
		require.Len(t, vec, 3)
		// 服务端把批内序号编码到向量首位，验证顺序未被打乱
		assert.Equal(t, float32(i), vec[0])
	}
}

func TestCreateEmbeddingsBatching(t *testing.T) {
	var gotBatches [][]string
	server := embeddingServer(t, &gotBatches)
	defer server.Close()

	client := newTestClient(server.URL, 2)
	texts := []string{"a", "b", "c", "d", "e"}

	vectors, err := client.CreateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 5)

	// 5 条文本、批大小 2：应产生 2+2+1 三次调用
	require.Len(t, gotBatches, 3)
	assert.Equal(t, []string{"a", "b"}, gotBatches[0])
	assert.Equal(t, []string{"c", "d"}, gotBatches[1])
	assert.Equal(t, []string{"e"}, gotBatches[2])
}

func TestCreateEmbeddingNestedShapeNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 某些提供方返回单行矩阵形状的 embedding
		fmt.Fprint(w, `{"data":[{"embedding":[[0.1,0.2,0.3]]}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 10)
	vec, err := client.CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestCreateEmbeddingFlatShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[0.4,0.5,0.6]}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 10)
	vec, err := client.CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, vec)
}

func TestCreateEmbeddingServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 10)
	_, err := client.CreateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestCreateEmbeddingsEmptyInput(t *testing.T) {
	client := newTestClient("http://unused", 10)
	vectors, err := client.CreateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
