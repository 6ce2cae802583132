package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
)

type (
	// seedData is the layout of a seed file. Students reference users by username,
	// classes reference their tutor by username and their students by name.
	seedData struct {
		Users    []seedUser    `yaml:"users"`
		Students []seedStudent `yaml:"students"`
		Classes  []seedClass   `yaml:"classes"`
	}

	seedUser struct {
		Name     string `yaml:"name"`
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
	}

	seedStudent struct {
		Name   string `yaml:"name"`
		Email  string `yaml:"email"`
		Phone  string `yaml:"phone"`
		Grade  int    `yaml:"grade"`
		School string `yaml:"school"`
		Parent string `yaml:"parent"`
		User   string `yaml:"user"`
	}

	seedClass struct {
		Name     string   `yaml:"name"`
		Subject  string   `yaml:"subject"`
		Tutor    string   `yaml:"tutor"`
		Schedule string   `yaml:"schedule"`
		Room     string   `yaml:"room"`
		Capacity int      `yaml:"capacity"`
		Students []string `yaml:"students"`
	}
)

// seed loads a YAML seed file. Users are created or updated by username; students and classes
// are matched by name, so seeding twice does not duplicate them.
func (cli *commandLine) seed(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading seed file")
	}
	var data seedData
	if err = yaml.Unmarshal(raw, &data); err != nil {
		return errors.Wrap(err, "parsing seed file")
	}

	ctx := context.Background()
	for i, su := range data.Users {
		if su.Password == "" {
			return errors.Errorf("users[%d]: password is required", i)
		}
		role := su.Role
		if role == "" {
			role = user.FamilyStudent
		}
		if err = cli.addUser(su.Name, su.Username, su.Email, su.Password, role); err != nil {
			return errors.Wrapf(err, "users[%d]", i)
		}
	}

	studentIDs := make(map[string]string, len(data.Students))
	for i, ss := range data.Students {
		st, err := cli.seedStudent(ctx, ss)
		if err != nil {
			return errors.Wrapf(err, "students[%d]", i)
		}
		studentIDs[st.Name] = st.ID
	}

	for i, sc := range data.Classes {
		if err = cli.seedClass(ctx, sc, studentIDs); err != nil {
			return errors.Wrapf(err, "classes[%d]", i)
		}
	}

	fmt.Fprintf(cli.out, "seeded %d user(s), %d student(s), %d class(es)\n", len(data.Users), len(data.Students), len(data.Classes))
	return nil
}

func (cli *commandLine) userID(ctx context.Context, uname string) (string, error) {
	if uname == "" {
		return "", nil
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return "", errors.Wrapf(err, "user %q", uname)
	}
	return usr.ID, nil
}

func (cli *commandLine) seedStudent(ctx context.Context, ss seedStudent) (student.Student, error) {
	name := core.CleanString(ss.Name)
	existing, err := cli.stSvc.Query(ctx, &student.QueryFilter{Search: name}, nil)
	if err != nil {
		return student.Student{}, err
	}
	for _, st := range existing {
		if st.Name == name {
			return st, nil
		}
	}

	ns := student.NewStudent{Name: ss.Name, Email: ss.Email, Phone: ss.Phone, Grade: ss.Grade, School: ss.School}
	if ns.ParentID, err = cli.userID(ctx, ss.Parent); err != nil {
		return student.Student{}, err
	}
	if ns.UserID, err = cli.userID(ctx, ss.User); err != nil {
		return student.Student{}, err
	}
	if err = ns.Validate(ctx, cli.validate, cli.stSvc); err != nil {
		return student.Student{}, err
	}
	return cli.stSvc.Create(ctx, ns)
}

func (cli *commandLine) seedClass(ctx context.Context, sc seedClass, studentIDs map[string]string) error {
	var cls class.Class
	name := core.CleanString(sc.Name)
	existing, err := cli.clsSvc.Query(ctx, &class.QueryFilter{Search: name}, nil)
	if err != nil {
		return err
	}
	for _, c := range existing {
		if c.Name == name {
			cls = c
			break
		}
	}

	if cls.ID == "" {
		nc := class.NewClass{Name: sc.Name, Subject: sc.Subject, Schedule: sc.Schedule, Room: sc.Room, Capacity: sc.Capacity}
		if nc.TutorID, err = cli.userID(ctx, sc.Tutor); err != nil {
			return err
		}
		if err = nc.Validate(cli.validate); err != nil {
			return err
		}
		if cls, err = cli.clsSvc.Create(ctx, nc); err != nil {
			return err
		}
	}

	if len(sc.Students) == 0 {
		return nil
	}
	ids := make([]string, 0, len(sc.Students))
	for _, stName := range sc.Students {
		id, ok := studentIDs[core.CleanString(stName)]
		if !ok {
			return errors.Errorf("student %q is not in the seed file", stName)
		}
		ids = append(ids, id)
	}
	_, err = cli.clsSvc.AssignStudents(ctx, cls.ID, ids)
	return err
}
