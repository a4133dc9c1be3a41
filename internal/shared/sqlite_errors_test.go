package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSQLiteConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy message", errors.New("exec: SQLITE_BUSY (5)"), true},
		{"locked message", fmt.Errorf("record exchange: %w", errors.New("database is locked")), true},
		{"constraint", errors.New("UNIQUE constraint failed: exchanges.id"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSQLiteConflictError(tt.err); got != tt.want {
				t.Fatalf("IsSQLiteConflictError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSQLiteCodeWithoutDriverError(t *testing.T) {
	if code := SQLiteCode(errors.New("plain")); code != 0 {
		t.Fatalf("SQLiteCode = %d, want 0", code)
	}
}
