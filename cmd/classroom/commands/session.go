package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stemsi/classroom-client/internal/model"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in and keep the session on this machine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := ""
			if len(args) == 1 {
				email = args[0]
			} else {
				email = readLine("Email: ")
			}
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			user, err := core.Session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return printUser(user)
		},
	}
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core.Session.Logout(cmd.Context())
			fmt.Println("Signed out")
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	var (
		req         model.RegisterRequest
		role        string
		departments string
		subjects    []string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Email == "" {
				req.Email = readLine("Email: ")
			}
			if req.Username == "" {
				req.Username = readLine("Username: ")
			}
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			req.Password = password
			req.Role = model.Role(role)
			for _, d := range strings.Split(departments, ",") {
				if d = strings.TrimSpace(d); d != "" {
					req.Departments = append(req.Departments, d)
				}
			}
			for _, s := range subjects {
				req.Subjects = append(req.Subjects, model.Subject(s))
			}

			user, err := core.Session.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printUser(user)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Username, "username", "", "display username")
	cmd.Flags().StringVar(&req.Folio, "folio", "", "school folio")
	cmd.Flags().StringVar(&req.CURP, "curp", "", "18 character CURP")
	cmd.Flags().StringVar(&role, "role", string(model.RoleStudent), "student, teacher or admin")
	cmd.Flags().StringVar(&departments, "departments", "", "comma separated departments")
	cmd.Flags().StringArrayVar(&subjects, "subject", nil, "subject taught (teachers only, repeatable)")
	return cmd
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := signedIn()
			if err != nil {
				return err
			}
			return printUser(user)
		},
	}
}

func printUser(user *model.User) error {
	if asJSON {
		return printJSON(user)
	}
	fmt.Printf("%s <%s>\n", user.Username, user.Email)
	fmt.Printf("  id:   %s\n", user.ID)
	fmt.Printf("  role: %s\n", user.Role)
	if len(user.Subjects) > 0 {
		names := make([]string, len(user.Subjects))
		for i, s := range user.Subjects {
			names[i] = string(s)
		}
		fmt.Printf("  subjects: %s\n", strings.Join(names, ", "))
	}
	if st := core.Session.Current(); st.Token != nil {
		fmt.Printf("  session expires: %s\n", st.Token.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}
