package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/user"
)

// findUser looks a user up by username, then by email.
func (cli *commandLine) findUser(ctx context.Context, login string) (user.User, error) {
	login = core.CleanString(login, true /* lower */)
	usr, err := cli.store.Users.GetUser(ctx, user.GetFilter{Username: login})
	if errors.Cause(err) == user.ErrNotFound {
		return cli.store.Users.GetUser(ctx, user.GetFilter{Email: login})
	}
	return usr, err
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(uname, email, fullName, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.findUser(ctx, uname)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}
	exists := err == nil
	if !exists {
		if usr, err = cli.findUser(ctx, email); err != nil && errors.Cause(err) != user.ErrNotFound {
			return err
		}
		exists = err == nil
	}

	now := time.Now().UTC()
	if !exists {
		usr = user.User{Role: user.RoleStudent, CreatedAt: now}
	}
	usr.Username = uname
	usr.Email = email
	if fullName = core.CleanString(fullName); fullName != "" {
		usr.FullName = fullName
	} else if usr.FullName == "" {
		usr.FullName = uname
	}
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.IsActive = true
	usr.RequiresPasswordReset = false
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		if err = cli.store.Users.CheckUniqueness(ctx, usr.Username, usr.Email, usr.ID); err != nil {
			return err
		}
		_, err = cli.store.Users.UpdateUser(ctx, usr)
	} else {
		_, err = cli.store.Users.CreateUser(ctx, usr)
	}
	if err != nil {
		return errors.Wrap(err, "saving user")
	}
	cli.logger.Info("user saved", map[string]interface{}{"username": usr.Username, "role": usr.Role, "created": !exists})
	return nil
}
