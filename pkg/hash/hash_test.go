package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hashed)

	assert.True(t, CheckPasswordHash("correct horse battery staple", hashed))
	assert.False(t, CheckPasswordHash("wrong password", hashed))
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, err := HashPassword("same password")
	require.NoError(t, err)
	second, err := HashPassword("same password")
	require.NoError(t, err)

	// bcrypt 每次使用随机盐，两次哈希结果不同但都能校验通过
	assert.NotEqual(t, first, second)
	assert.True(t, CheckPasswordHash("same password", first))
	assert.True(t, CheckPasswordHash("same password", second))
}
