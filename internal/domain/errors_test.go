package domain

import (
	"errors"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "order not found",
			err:  ErrOrderNotFound,
			want: true,
		},
		{
			name: "product not found",
			err:  ErrProductNotFound,
			want: true,
		},
		{
			name: "wrapped not found",
			err:  errors.Join(ErrWarehouseNotFound, errors.New("additional context")),
			want: true,
		},
		{
			name: "other error",
			err:  ErrInsufficientStock,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNotFound(tt.err)
			if got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}
