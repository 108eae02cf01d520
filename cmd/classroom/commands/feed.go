package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stemsi/classroom-client/internal/feed"
	"github.com/stemsi/classroom-client/internal/model"
)

// dueLayout is the accepted --due format besides RFC 3339.
const dueLayout = "2006-01-02 15:04"

func announcementsCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "announcements [class-id]",
		Short: "Show a class stream, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := signedIn(); err != nil {
				return err
			}
			view, err := page(cmd.Context(), args[0], pages, core.Feeds.LoadAnnouncements, core.Feeds.MoreAnnouncements)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(view)
			}

			for _, a := range view.Items {
				fmt.Printf("── %s  %s\n%s\n\n", a.CreatedAt.Local().Format(time.RFC1123), a.AuthorID, a.Content)
			}
			printMore(view.HasMore)
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func assignmentsCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "assignments [class-id]",
		Short: "Show class work, nearest due date first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := signedIn(); err != nil {
				return err
			}
			view, err := page(cmd.Context(), args[0], pages, core.Feeds.LoadAssignments, core.Feeds.MoreAssignments)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(view)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DUE\tPOINTS\tTITLE\tID")
			for _, a := range view.Items {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", a.DueDate.Local().Format(dueLayout), a.Points, a.Title, a.ID)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printMore(view.HasMore)
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func postCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post [class-id] [content...]",
		Short: "Post an announcement to a class stream",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeacher(); err != nil {
				return err
			}
			req := model.CreateAnnouncementRequest{Content: strings.Join(args[1:], " ")}
			a, err := core.Feeds.CreateAnnouncement(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(a)
			}
			fmt.Printf("Posted announcement %s\n", a.ID)
			return nil
		},
	}
}

func assignCmd() *cobra.Command {
	var (
		req model.CreateAssignmentRequest
		due string
	)

	cmd := &cobra.Command{
		Use:   "assign [class-id] [title]",
		Short: "Create an assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeacher(); err != nil {
				return err
			}
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			req.Title = args[1]
			req.DueDate = dueDate

			a, err := core.Feeds.CreateAssignment(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(a)
			}
			fmt.Printf("Created assignment %s due %s (%d points)\n", a.ID, a.DueDate.Local().Format(dueLayout), a.Points)
			return nil
		},
	}

	cmd.Flags().StringVar(&due, "due", "", `due date, RFC 3339 or "2006-01-02 15:04" local time`)
	cmd.Flags().StringVar(&req.Description, "description", "", "instructions")
	cmd.Flags().IntVar(&req.Points, "points", 0, "maximum points (default 100)")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

// page loads the first page and follows it until pages are read or the feed
// is exhausted.
func page[T any](
	ctx context.Context,
	classID string,
	pages int,
	first func(context.Context, string) (feed.View[T], error),
	more func(context.Context, string) (feed.View[T], error),
) (feed.View[T], error) {
	view, err := first(ctx, classID)
	if err != nil {
		return view, err
	}
	for i := 1; i < pages && view.HasMore; i++ {
		if view, err = more(ctx, classID); err != nil {
			return view, err
		}
	}
	return view, nil
}

func printMore(hasMore bool) {
	if hasMore {
		fmt.Fprintln(os.Stderr, "More items available, use --pages to load them")
	}
}

func requireTeacher() error {
	user, err := signedIn()
	if err != nil {
		return err
	}
	if user.Role != model.RoleTeacher {
		return fmt.Errorf("only teachers can publish to a class")
	}
	return nil
}

func parseDue(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dueLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --due %q: %w", s, err)
	}
	return t, nil
}
