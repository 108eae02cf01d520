// Package commands implements the classroom command line client. The session
// is kept in a local file between invocations.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stemsi/classroom-client/internal/app"
	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/logger"
	"github.com/stemsi/classroom-client/internal/metrics"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/response"
	"github.com/stemsi/classroom-client/internal/validator"
)

var (
	sessionFile string
	verbose     bool
	asJSON      bool

	core *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:           "classroom",
		Short:         "Classroom client: sign in, browse classes and follow their feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			cfg.SessionMedium = config.MediumFile
			if sessionFile != "" {
				cfg.SessionFile = sessionFile
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			log := logger.SetupWriter(os.Stderr, level, "pretty")
			validator.Setup()

			core = app.New(cfg, log, metrics.NewNop(), newPrintSender(os.Stderr))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				core.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&sessionFile, "session-file", "", "session file (default $SESSION_FILE)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		loginCmd(), logoutCmd(), registerCmd(), whoamiCmd(), recoverCmd(),
		classesCmd(), announcementsCmd(), assignmentsCmd(), postCmd(), assignCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		return err
	}
	return nil
}

// signedIn returns the session user or UNAUTHENTICATED.
func signedIn() (*model.User, error) {
	if !core.Session.CheckSession() {
		return nil, apperr.New(apperr.CodeUnauthenticated, "classroom", nil)
	}
	user, _ := core.Session.User()
	return user, nil
}

// describe renders an error the way the web client would show it.
func describe(err error) string {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		return err.Error()
	}
	msg := response.GetMessage(response.ErrCode(code))
	for field, detail := range apperr.FieldsOf(err) {
		msg += fmt.Sprintf("\n  %s: %s", field, detail)
	}
	return msg
}
