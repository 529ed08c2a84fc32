package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{""}, ""},
		{[]string{"cache"}, "cache."},
		{[]string{"cache", "redis"}, "cache.redis."},
		{[]string{"embedding."}, "embedding."},
		{[]string{"", "store", "sqlite"}, "store.sqlite."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Join(tt.in...), "%v", tt.in)
	}
}
