package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Acquire(t *testing.T) {
	p := NewProvider()

	lease, err := p.Acquire("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Active())

	tests := []struct {
		name     string
		text     string
		minCount int
		maxCount int
	}{
		{"空字符串", "", 0, 0},
		{"简单英文", "Hello, world!", 3, 5},
		{"简单中文", "你好世界", 2, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := lease.Count(tt.text)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, tt.minCount)
			assert.LessOrEqual(t, n, tt.maxCount)
		})
	}

	lease.Release()
	assert.Equal(t, int64(0), p.Active())
}

func TestProvider_UnknownModelFallsBack(t *testing.T) {
	p := NewProvider()

	lease, err := p.Acquire("some-unknown-model")
	require.NoError(t, err)
	defer lease.Release()

	n, err := lease.Count("fallback encoding works")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestLease_UseAfterRelease(t *testing.T) {
	p := NewProvider()
	lease, err := p.Acquire("gpt-4")
	require.NoError(t, err)

	lease.Release()
	// 重复释放不影响计数
	lease.Release()
	assert.Equal(t, int64(0), p.Active())

	_, err = lease.Count("hello")
	assert.ErrorIs(t, err, ErrReleased)
}

func TestProvider_CachesEncoding(t *testing.T) {
	p := NewProvider()

	a, err := p.Acquire("gpt-4")
	require.NoError(t, err)
	b, err := p.Acquire("gpt-4")
	require.NoError(t, err)
	defer a.Release()
	defer b.Release()

	assert.Same(t, a.(*Lease).encoding, b.(*Lease).encoding)
	assert.Equal(t, int64(2), p.Active())
}
