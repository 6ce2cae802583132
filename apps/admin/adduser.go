package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/user"
)

var familyRoles = map[string][]string{
	user.FamilyAdmin:   user.AdminRoles,
	user.FamilyTutor:   user.TutorRoles,
	user.FamilyParent:  user.ParentRoles,
	user.FamilyStudent: user.StudentRoles,
}

// addUser updates or creates an active user.User with the roles of the given family.
func (cli *commandLine) addUser(name, uname, email, pwd, family string) error {
	roles, ok := familyRoles[core.CleanString(family, true /* lower */)]
	if !ok {
		return fmt.Errorf("unknown role %q: must be one of admin, tutor, parent or student", family)
	}

	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{Username: uname, CreatedAt: now}
	}
	if err = cli.usrRepo.CheckUsernameUniqueness(ctx, "", email, usr); err != nil {
		return err
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	usr.Email = email
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	if usr, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q saved (%s)\n", usr.Username, usr.ID)
	return nil
}
