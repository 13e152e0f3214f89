package sqlbackend

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Dialect_Rebind(t *testing.T) {
	dollar := &Dialect{
		Placeholder: func(n int) string {
			return "$" + strconv.Itoa(n)
		},
	}

	tests := []struct {
		name    string
		dialect *Dialect
		query   string
		want    string
	}{
		{
			name:    "question marks kept",
			dialect: &Dialect{},
			query:   "SELECT 1 FROM instances WHERE instance_id = ? AND execution_id = ?",
			want:    "SELECT 1 FROM instances WHERE instance_id = ? AND execution_id = ?",
		},
		{
			name:    "numbered",
			dialect: dollar,
			query:   "SELECT 1 FROM instances WHERE instance_id = ? AND execution_id = ?",
			want:    "SELECT 1 FROM instances WHERE instance_id = $1 AND execution_id = $2",
		},
		{
			name:    "in list",
			dialect: dollar,
			query:   "DELETE FROM pending_events WHERE instance_id = ? AND event_id IN (" + placeholders(3) + ")",
			want:    "DELETE FROM pending_events WHERE instance_id = $1 AND event_id IN ($2,$3,$4)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.dialect.rebind(tt.query))
		})
	}
}

func Test_Placeholders(t *testing.T) {
	require.Equal(t, "", placeholders(0))
	require.Equal(t, "?", placeholders(1))
	require.Equal(t, "?,?,?", placeholders(3))
}

func Test_Dialect_UniqueViolation(t *testing.T) {
	errUnique := errors.New("unique")

	d := &Dialect{
		IsUniqueViolation: func(err error) bool {
			return errors.Is(err, errUnique)
		},
	}

	require.True(t, d.uniqueViolation(errUnique))
	require.False(t, d.uniqueViolation(nil))
	require.False(t, d.uniqueViolation(errors.New("other")))
	require.False(t, (&Dialect{}).uniqueViolation(errUnique))
}
