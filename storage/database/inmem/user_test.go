package inmemdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-connect/core/user"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())

	usr, err := repo.CreateUser(ctx, user.User{Name: "John", Username: "john", Email: "john@example.com", Phone: "+243810000001"})
	require.NoError(t, err)
	assert.True(t, *usr.IsActive)
	assert.Equal(t, []string{}, usr.Roles)

	tests := []struct {
		name    string
		uname   string
		email   string
		phone   string
		excl    []user.User
		wantErr error
	}{
		{name: "username", uname: "john", wantErr: user.ErrUsernameExists},
		{name: "email", email: "john@example.com", wantErr: user.ErrEmailExists},
		{name: "phone", phone: "+243810000001", wantErr: user.ErrPhoneExists},
		{name: "excluded", uname: "john", excl: []user.User{usr}},
		{name: "free", uname: "jane", email: "jane@example.com", phone: "+243810000002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.CheckUserUniqueness(ctx, tt.uname, tt.email, tt.phone, tt.excl)
			if err != tt.wantErr {
				t.Errorf("failed! err = %v; want %v", err, tt.wantErr)
			}
		})
	}

	for _, filter := range []user.GetFilter{
		{ID: usr.ID}, {Username: "john"}, {Email: "john@example.com"}, {Phone: "+243810000001"},
		{UsernameOrEmail: []string{"john"}}, {UsernameOrEmail: []string{"", "john@example.com"}},
	} {
		got, err := repo.GetUser(ctx, filter)
		if assert.NoError(t, err, "%+v", filter) {
			assert.Equal(t, usr.ID, got.ID)
		}
	}
	_, err = repo.GetUser(ctx, user.GetFilter{Username: "nobody"})
	assert.ErrorIs(t, err, user.ErrNotFound)

	usr.Name = "Johnny"
	usr.Roles = []string{user.RoleTeacher}
	updated, err := repo.UpdateOrCreateUser(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, "Johnny", updated.Name)
	assert.Equal(t, usr.CreatedAt, updated.CreatedAt)
	assert.Equal(t, []string{user.RoleTeacher}, updated.Roles)
}
