package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tabsql/tabsql"
)

func TestExitCodeForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil is success", nil, ExitOK},
		{"schema conflict", fmt.Errorf("wrap: %w", tabsql.ErrSchemaConflict), ExitSchemaConflict},
		{"connection failure", fmt.Errorf("wrap: %w", tabsql.ErrConnection), ExitConnection},
		{"usage error", fmt.Errorf("%w: bad flag", errUsage), ExitUsage},
		{"unreadable source is general", fmt.Errorf("wrap: %w", tabsql.ErrUnreadableSource), ExitError},
		{"arbitrary error is general", errors.New("boom"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ExitCodeForError(tt.err))
		})
	}
}

func TestLookupEnv(t *testing.T) {
	t.Setenv("TABSQL_TEST_VAR_B", "second")

	assert.Equal(t, "second", lookupEnv("TABSQL_TEST_VAR_A", "TABSQL_TEST_VAR_B"))
	assert.Equal(t, "", lookupEnv("TABSQL_TEST_VAR_A"))
}
