package main

import (
	"context"

	"github.com/trezcool/remindme/core/user"
)

// createAdmin creates an active user.User with the admin role.
func (cli *commandLine) createAdmin(name, uname, email, pwd, confirmation string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirmation,
		Role:            user.RoleAdmin,
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	logger.Printf("admin %q created (id=%d)", usr.Username, usr.ID)
	return nil
}
