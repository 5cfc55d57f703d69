package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyInput(t *testing.T) {
	assert.Nil(t, Chunk("", 300))
	assert.Nil(t, Chunk("   \n\t  ", 300))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	chunks := Chunk("hello world", 300)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunkPreservesAllWordsInOrder(t *testing.T) {
	words := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		words = append(words, "word"+strings.Repeat("x", i%7))
	}
	text := strings.Join(words, " ")

	chunks := Chunk(text, 50)
	require.NotEmpty(t, chunks)

	// 所有分块重新拼接后应还原全部单词（顺序不变）
	var rejoined []string
	for _, chunk := range chunks {
		rejoined = append(rejoined, strings.Fields(chunk)...)
	}
	assert.Equal(t, words, rejoined)
}

func TestChunkSizeBoundary(t *testing.T) {
	// 1200 个字符、目标 300：恰好产生 4 个分块，除末块外每块一旦达到目标即封闭
	text := strings.Repeat("abcde ", 200) // 200 个五字词
	chunks := Chunk(text, 300)
	require.Len(t, chunks, 4)

	for i, chunk := range chunks {
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, len(chunk), 300, "非末块必须达到目标长度")
		}
	}
}

func TestChunkOverlongWordKept(t *testing.T) {
	longWord := strings.Repeat("a", 500)
	chunks := Chunk("short "+longWord+" tail", 300)
	require.NotEmpty(t, chunks)

	// 超长单词不被截断，完整出现在某个分块中
	found := false
	for _, chunk := range chunks {
		if strings.Contains(chunk, longWord) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 30)
	first := Chunk(text, 120)
	second := Chunk(text, 120)
	assert.Equal(t, first, second)
}
