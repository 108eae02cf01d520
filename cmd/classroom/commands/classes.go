package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stemsi/classroom-client/internal/model"
)

func classesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the classes you teach or are enrolled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := signedIn()
			if err != nil {
				return err
			}
			classes, err := core.Classes.UserClasses(cmd.Context(), user)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(classes)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSECTION\tSUBJECT\tROOM\tSTUDENTS")
			for _, c := range classes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Section, c.Subject, c.Room, len(c.StudentIDs))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(classCreateCmd(), classStudentsCmd(), classEnrollCmd())
	return cmd
}

func classCreateCmd() *cobra.Command {
	var req model.CreateClassRequest

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a class you teach",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := signedIn()
			if err != nil {
				return err
			}
			req.Name = args[0]
			class, err := core.Classes.CreateClass(cmd.Context(), user, req)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(class)
			}
			fmt.Printf("Created class %s (%s)\n", class.Name, class.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Section, "section", "", "section or group")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "subject taught")
	cmd.Flags().StringVar(&req.Room, "room", "", "room")
	cmd.Flags().StringVar(&req.Color, "color", "", "hex color, e.g. #1a73e8")
	return cmd
}

func classStudentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "students [class-id]",
		Short: "List the students enrolled in a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := signedIn(); err != nil {
				return err
			}
			students, err := core.Classes.Students(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(students)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tFOLIO")
			for _, s := range students {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Username, s.Email, s.Folio)
			}
			return w.Flush()
		},
	}
}

func classEnrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll [class-id] [student-id]",
		Short: "Add a student to a class",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := signedIn()
			if err != nil {
				return err
			}
			if user.Role != model.RoleTeacher {
				return fmt.Errorf("only teachers can enroll students")
			}
			if err := core.Classes.Enroll(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("Student enrolled")
			return nil
		},
	}
}
