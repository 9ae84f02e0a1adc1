package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"零值取默认", Page{}, Page{Page: 1, Limit: DefaultLimit}},
		{"负数取默认", Page{Page: -3, Limit: -1}, Page{Page: 1, Limit: DefaultLimit}},
		{"超过上限截断", Page{Page: 2, Limit: 5000}, Page{Page: 2, Limit: MaxLimit}},
		{"正常值不变", Page{Page: 3, Limit: 10}, Page{Page: 3, Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}
