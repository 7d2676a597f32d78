package collaboration

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func parseSchema(t *testing.T, model any) *schema.Schema {
	t.Helper()
	s, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	return s
}

// Workspace deletion must take sessions, participants, events and comments
// with it, so every model declares the foreign key that carries the cascade.
func TestModels_DeleteCascade(t *testing.T) {
	tests := []struct {
		name     string
		model    any
		relation string
	}{
		{"session follows workspace", &Session{}, "Workspace"},
		{"participant follows session", &Participant{}, "Session"},
		{"event follows session", &Event{}, "Session"},
		{"comment follows session", &CodeComment{}, "Session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parseSchema(t, tt.model)
			rel, ok := s.Relationships.Relations[tt.relation]
			require.True(t, ok, "missing %s relation", tt.relation)

			constraint := rel.ParseConstraint()
			require.NotNil(t, constraint, "relation declares no foreign key constraint")
			assert.Equal(t, "CASCADE", constraint.OnDelete)
		})
	}
}
