package main

import (
	"context"
	"time"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.findUser(ctx, uname)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.RequiresPasswordReset = false
	usr.UpdatedAt = time.Now().UTC()
	if _, err = cli.store.Users.UpdateUser(ctx, usr); err != nil {
		return err
	}
	cli.logger.Info("password reset", map[string]interface{}{"username": usr.Username})
	return nil
}

func (cli *commandLine) seedAdmin() error {
	usr, created, err := cli.usrSvc.EnsureAdmin(context.Background())
	if err != nil {
		return err
	}
	if created {
		cli.logger.Info("admin account seeded", map[string]interface{}{"username": usr.Username})
	} else {
		cli.logger.Info("admin account already exists", map[string]interface{}{"username": usr.Username})
	}
	return nil
}
