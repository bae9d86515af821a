package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsDuplicateWithoutMutatingOriginal(t *testing.T) {
	registry := NewRegistry()
	original, err := registry.Register("build", []string{"fetch"}, NoopBody())
	require.NoError(t, err)

	duplicate, err := registry.Register("build", []string{"other"}, nil)
	require.Nil(t, duplicate)

	var duplicateError DuplicateTaskError
	require.True(t, errors.As(err, &duplicateError))
	require.Equal(t, "build", duplicateError.Identifier)

	stored, found := registry.Lookup("build")
	require.True(t, found)
	require.Same(t, original, stored)
	require.Equal(t, []string{"fetch"}, stored.Prerequisites)
	require.Equal(t, []string{"fetch"}, stored.DeclaredPrerequisites)
}

func TestRegistrySubstitutesNoopBodyExceptForDefault(t *testing.T) {
	registry := NewRegistry()

	anchor, err := registry.Register("anchor", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, anchor.Body)
	require.NoError(t, NewAdapter().Execute(context.Background(), anchor.Body))

	aggregate, err := registry.Register(DefaultTaskIdentifier, []string{"anchor"}, nil)
	require.NoError(t, err)
	require.Nil(t, aggregate.Body)
}

func TestRegistryKeepsDeclaredPrerequisitesIndependent(t *testing.T) {
	registry := NewRegistry()
	prerequisites := []string{"a", "b"}
	descriptor, err := registry.Register("c", prerequisites, nil)
	require.NoError(t, err)

	prerequisites[0] = "mutated"
	descriptor.Prerequisites[1] = "changed"

	require.Equal(t, []string{"a", "changed"}, descriptor.Prerequisites)
	require.Equal(t, []string{"a", "b"}, descriptor.DeclaredPrerequisites)
}

func TestRegistryRejectsEmptyIdentifier(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Register("   ", nil, nil)
	require.ErrorIs(t, err, ErrEmptyIdentifier)

	var nilRegistry *Registry
	_, err = nilRegistry.Register("task", nil, nil)
	require.ErrorIs(t, err, ErrNilRegistry)
}

func TestRegistryIdentifiersFollowRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	for _, identifier := range []string{"zeta", "alpha", "mid"} {
		_, err := registry.Register(identifier, []string{"unregistered"}, nil)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"zeta", "alpha", "mid"}, registry.Identifiers())
	require.Equal(t, 3, registry.Len())

	_, found := registry.Lookup("unregistered")
	require.False(t, found)
}
