package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndLookup(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	u := &User{Username: "ravi", Email: " Ravi@Example.com ", PasswordHash: "h", Role: "farmer"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NotEmpty(t, u.ID)

	byID, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ravi@example.com", byID.Email)

	byEmail, err := s.UserByEmail(ctx, "RAVI@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
}

func TestDuplicateEmailRejected(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &User{Username: "a", Email: "x@y.z", PasswordHash: "h", Role: "bidder"}))
	err := s.CreateUser(ctx, &User{Username: "b", Email: "X@Y.Z", PasswordHash: "h", Role: "bidder"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUpdateUser(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	u := &User{Username: "ravi", Email: "r@e.c", PasswordHash: "h", Role: "farmer"}
	require.NoError(t, s.CreateUser(ctx, u))

	name := "ravi kumar"
	contact := "+91-99999"
	got, err := s.UpdateUser(ctx, u.ID, Update{Username: &name, Contact: &contact})
	require.NoError(t, err)
	assert.Equal(t, "ravi kumar", got.Username)
	assert.Equal(t, "+91-99999", got.Contact)

	_, err = s.UpdateUser(ctx, "missing", Update{})
	assert.ErrorIs(t, err, ErrNotFound)
}
