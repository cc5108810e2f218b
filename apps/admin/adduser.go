package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/user"
)

type userInput struct {
	name     string
	username string
	email    string
	phone    string
	roles    []string
	isAdmin  bool
	password string
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(in userInput) error {
	ctx := context.Background()
	uname := core.CleanString(in.username, true /* lower */)
	email := core.CleanString(in.email, true /* lower */)
	phone := core.NormalizePhone(in.phone, cli.defaultCC)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username: uname,
			Email:    email,
		}
	}
	if name := core.CleanString(in.name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = usr.Username
	}
	if phone != "" {
		usr.Phone = phone
	}
	if in.isAdmin {
		usr.Roles = user.AllRoles
	} else if len(in.roles) > 0 {
		for _, role := range in.roles {
			if user.RolePriority(role) == 0 {
				return errors.Errorf("%q: no such role", role)
			}
		}
		usr.Roles = in.roles
	}
	usr.SetActive(true)
	if err := usr.SetPassword(in.password); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
