package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/bookcase/internal/domain"
)

func TestRole_Capabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		role domain.Role
		can  []domain.Capability
		cant []domain.Capability
	}{
		{
			name: "librarian holds every capability",
			role: domain.RoleLibrarian,
			can:  []domain.Capability{domain.CapReadOwn, domain.CapReadAll, domain.CapWrite},
		},
		{
			name: "client only reads own records",
			role: domain.RoleClient,
			can:  []domain.Capability{domain.CapReadOwn},
			cant: []domain.Capability{domain.CapReadAll, domain.CapWrite},
		},
		{
			name: "unknown role holds nothing",
			role: domain.Role("superuser"),
			cant: []domain.Capability{domain.CapReadOwn, domain.CapReadAll, domain.CapWrite},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			caller := domain.Caller{UserID: 1, Role: tt.role}

			for _, cap := range tt.can {
				assert.True(t, caller.Can(cap), "expected %s to hold %s", tt.role, cap)
				assert.NoError(t, caller.Authorize(cap))
			}

			for _, cap := range tt.cant {
				assert.False(t, caller.Can(cap), "expected %s to lack %s", tt.role, cap)
				assert.ErrorIs(t, caller.Authorize(cap), domain.ErrForbidden)
			}
		})
	}
}

func TestCaller_Authorize_NamesCapability(t *testing.T) {
	t.Parallel()

	caller := domain.Caller{UserID: 1, Role: domain.RoleClient}

	err := caller.Authorize(domain.CapWrite)
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Contains(t, err.Error(), "write")
	assert.Contains(t, err.Error(), "client")
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	role, err := domain.ParseRole("librarian")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleLibrarian, role)

	role, err = domain.ParseRole("client")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, role)

	_, err = domain.ParseRole("admin")
	require.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = domain.ParseRole("")
	require.ErrorIs(t, err, domain.ErrInvalidRole)
}
