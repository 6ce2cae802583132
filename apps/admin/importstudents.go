package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/tutora/backend/core/student"
)

// importStudents creates the students of an .xlsx sheet and, with classID, enrolls them in that class.
func (cli *commandLine) importStudents(path, classID string) error {
	ctx := context.Background()
	if classID != "" {
		if _, err := cli.clsSvc.GetByID(ctx, classID); err != nil {
			return err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	rows, err := student.ReadSheet(f)
	if err != nil {
		return err
	}
	res, err := cli.stSvc.Import(ctx, rows, cli.validate)
	if err != nil {
		return err
	}

	for _, skipped := range res.Skipped {
		fmt.Fprintf(cli.out, "row %d skipped: %s\n", skipped.Row, skipped.Error)
	}
	fmt.Fprintf(cli.out, "%d student(s) imported, %d row(s) skipped\n", len(res.Created), len(res.Skipped))

	if classID == "" || len(res.Created) == 0 {
		return nil
	}
	ids := make([]string, 0, len(res.Created))
	for _, st := range res.Created {
		ids = append(ids, st.ID)
	}
	cls, err := cli.clsSvc.AssignStudents(ctx, classID, ids)
	if err != nil {
		// the students stay created: list them so they can be enrolled by hand
		for _, st := range res.Created {
			fmt.Fprintf(cli.out, "not enrolled: %s %s\n", st.ID, st.Name)
		}
		return errors.Wrapf(err, "enrolling %d imported student(s)", len(ids))
	}
	fmt.Fprintf(cli.out, "class %q now has %d student(s)\n", cls.Name, len(cls.StudentIDs))
	return nil
}
