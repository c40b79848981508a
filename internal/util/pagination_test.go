package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		page, size            int
		wantOffset, wantLimit int
	}{
		{page: 1, size: 10, wantOffset: 0, wantLimit: 10},
		{page: 3, size: 10, wantOffset: 20, wantLimit: 10},
		{page: 0, size: 0, wantOffset: 0, wantLimit: DefaultPageSize},
		{page: 2, size: 1000, wantOffset: DefaultPageSize, wantLimit: DefaultPageSize},
	}
	for _, tt := range tests {
		offset, limit := Calculate(tt.page, tt.size)
		assert.Equal(t, tt.wantOffset, offset)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestParsePage(t *testing.T) {
	offset, limit := ParsePage("2", "5")
	assert.Equal(t, 5, offset)
	assert.Equal(t, 5, limit)

	offset, limit = ParsePage("x", "")
	assert.Equal(t, 0, offset)
	assert.Equal(t, DefaultPageSize, limit)
}
