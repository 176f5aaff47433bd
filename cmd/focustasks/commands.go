package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"focus-tasks/internal/model"
	"focus-tasks/internal/service"
)

const shortIDLen = 8

// Clock times given to date-only flags.
const (
	dueHour, dueMinute       = 23, 59
	remindHour, remindMinute = 9, 0
)

var errTaskNotFound = errors.New("task not found")

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "focustasks",
		Short:        "focustasks - a task list with reminders, points and streaks",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")

	// runner opens the engine for one-shot commands.
	runner := func(notifyCompletions bool) appRunner {
		return func(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
			return func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context(), cmd.ErrOrStderr(), appOptions{
					verbose:           verbose,
					notifyCompletions: notifyCompletions,
				})
				if err != nil {
					return err
				}
				defer a.Close()
				return run(cmd, a, args)
			}
		}
	}
	withApp := runner(false)

	root.AddCommand(
		newServeCmd(),
		newAddCmd(withApp),
		newEditCmd(withApp),
		newListCmd(withApp),
		newDoneCmd(runner(true)),
		newRemoveCmd(withApp),
		newArchiveCmd(withApp),
		newClearCmd(withApp),
		newExportCmd(withApp),
		newImportCmd(withApp),
		newStatsCmd(withApp),
		newThemeCmd(withApp),
	)
	return root
}

type appRunner func(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error

func newAddCmd(withApp appRunner) *cobra.Command {
	var (
		notes    string
		priority string
		tags     []string
		due      string
		remind   string
		steps    []string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			p, ok := model.ParsePriority(strings.ToLower(priority))
			if !ok {
				return fmt.Errorf("unknown priority %q", priority)
			}
			input := service.TaskInput{
				Title:    strings.Join(args, " "),
				Notes:    notes,
				Priority: p,
				Tags:     tags,
			}
			for _, step := range steps {
				input.Subtasks = append(input.Subtasks, model.Subtask{Text: step})
			}
			if input.DueAt, ok = parseFlagTime(due, a.cfg.Location, dueHour, dueMinute); !ok {
				return fmt.Errorf("invalid --due %q, want YYYY-MM-DD[ HH:MM]", due)
			}
			if input.RemindAt, ok = parseFlagTime(remind, a.cfg.Location, remindHour, remindMinute); !ok {
				return fmt.Errorf("invalid --remind %q, want YYYY-MM-DD[ HH:MM]", remind)
			}

			task, err := a.tasks.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s %s\n", shortID(task.ID), task.Title)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Notes")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(model.PriorityMedium), "low, medium or high")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD[ HH:MM]")
	cmd.Flags().StringVar(&remind, "remind", "", "Reminder time, YYYY-MM-DD[ HH:MM]")
	cmd.Flags().StringArrayVarP(&steps, "step", "s", nil, "Checklist step (repeatable)")
	return cmd
}

func newEditCmd(withApp appRunner) *cobra.Command {
	var (
		title    string
		notes    string
		priority string
		tags     []string
		due      string
		remind   string
		steps    []string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task; an empty --due or --remind clears the date",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := resolveID(a.tasks, args[0])
			if err != nil {
				return err
			}

			var patch service.Patch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("notes") {
				patch.Notes = &notes
			}
			if flags.Changed("priority") {
				p, ok := model.ParsePriority(strings.ToLower(priority))
				if !ok {
					return fmt.Errorf("unknown priority %q", priority)
				}
				patch.Priority = &p
			}
			if flags.Changed("tag") {
				patch.Tags = &tags
			}
			if flags.Changed("due") {
				if patch.DueAt, err = patchTime(due, a.cfg.Location, dueHour, dueMinute); err != nil {
					return fmt.Errorf("invalid --due: %w", err)
				}
			}
			if flags.Changed("remind") {
				if patch.RemindAt, err = patchTime(remind, a.cfg.Location, remindHour, remindMinute); err != nil {
					return fmt.Errorf("invalid --remind: %w", err)
				}
			}
			if flags.Changed("step") {
				subtasks := make([]model.Subtask, 0, len(steps))
				for _, step := range steps {
					subtasks = append(subtasks, model.Subtask{Text: step})
				}
				patch.Subtasks = &subtasks
			}
			if patch == (service.Patch{}) {
				return errors.New("nothing to change, pass at least one flag")
			}

			if err := a.tasks.Update(cmd.Context(), id, patch); err != nil {
				return err
			}
			task, _ := a.tasks.Get(id)
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s %s\n", shortID(task.ID), task.Title)
			return nil
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "New notes (empty clears)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Replace tags (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD[ HH:MM]")
	cmd.Flags().StringVar(&remind, "remind", "", "Reminder time, YYYY-MM-DD[ HH:MM]")
	cmd.Flags().StringArrayVarP(&steps, "step", "s", nil, "Replace checklist steps (repeatable)")
	return cmd
}

func newListCmd(withApp appRunner) *cobra.Command {
	var filter, sortKey, search string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			f, ok := service.ParseFilter(filter)
			if !ok {
				return fmt.Errorf("unknown filter %q", filter)
			}
			s, ok := service.ParseSort(sortKey)
			if !ok {
				return fmt.Errorf("unknown sort %q", sortKey)
			}
			printTasks(cmd.OutOrStdout(), a.tasks.View(service.ViewQuery{Filter: f, Sort: s, Search: search}), a.cfg.Location)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", string(service.FilterAll), "all, active, completed or archived")
	cmd.Flags().StringVar(&sortKey, "sort", string(service.SortNewest), "newest, oldest, priority or due")
	cmd.Flags().StringVarP(&search, "search", "q", "", "Case-insensitive text search")
	return cmd
}

func newDoneCmd(withApp appRunner) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "done [id]",
		Short: "Toggle completion of a task",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			out := cmd.OutOrStdout()
			if all {
				fmt.Fprintf(out, "completed %d tasks\n", a.tasks.CompleteAll(cmd.Context()))
				return nil
			}
			if len(args) == 0 {
				return errors.New("an id is required unless --all is set")
			}
			id, err := resolveID(a.tasks, args[0])
			if err != nil {
				return err
			}
			award, completed := a.tasks.ToggleComplete(cmd.Context(), id)
			if !completed {
				fmt.Fprintf(out, "reopened %s\n", shortID(id))
				return nil
			}
			fmt.Fprintf(out, "Task completed: +%d points, streak %d\n", award.Points, award.Streak.Current)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "Mark every task completed (no points)")
	return cmd
}

func newRemoveCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := resolveID(a.tasks, args[0])
			if err != nil {
				return err
			}
			removed, _ := a.tasks.Remove(cmd.Context(), id)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s\n", shortID(removed.ID), removed.Title)
			return nil
		}),
	}
}

func newArchiveCmd(withApp appRunner) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a task, or bring it back with --undo",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := resolveID(a.tasks, args[0])
			if err != nil {
				return err
			}
			if undo {
				a.tasks.Unarchive(cmd.Context(), id)
				fmt.Fprintf(cmd.OutOrStdout(), "unarchived %s\n", shortID(id))
				return nil
			}
			a.tasks.Archive(cmd.Context(), id)
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", shortID(id))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Unarchive instead")
	return cmd
}

func newClearCmd(withApp appRunner) *cobra.Command {
	var all, resetMeta bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed tasks (or everything with --all)",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			out := cmd.OutOrStdout()
			if all {
				fmt.Fprintf(out, "removed %d tasks\n", a.tasks.ClearAll(cmd.Context()))
			} else {
				fmt.Fprintf(out, "removed %d completed tasks\n", a.tasks.ClearCompleted(cmd.Context()))
			}
			if resetMeta {
				a.tasks.ResetMeta(cmd.Context())
				fmt.Fprintln(out, "points and streak reset")
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every task")
	cmd.Flags().BoolVar(&resetMeta, "reset-meta", false, "Also reset points, streak and theme")
	return cmd
}

func newExportCmd(withApp appRunner) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of tasks and progress",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			data, err := service.MarshalExport(a.tasks.ExportDocument())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d tasks to %s\n", len(a.tasks.Tasks()), output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (default stdout)")
	return cmd
}

func newImportCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import tasks from a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}

			imported, err := a.tasks.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d tasks\n", len(imported))
			return nil
		}),
	}
}

func newStatsCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counters, points and streak",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			st := a.tasks.Stats()
			meta := a.tasks.Meta()
			last := "never"
			if meta.Streak.LastDate != nil {
				last = *meta.Streak.LastDate
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "total\t%d\n", st.Total)
			fmt.Fprintf(w, "active\t%d\n", st.Active)
			fmt.Fprintf(w, "completed\t%d\n", st.Completed)
			fmt.Fprintf(w, "archived\t%d\n", st.Archived)
			fmt.Fprintf(w, "high priority\t%d\n", st.High)
			fmt.Fprintf(w, "points\t%d\n", meta.Points)
			fmt.Fprintf(w, "streak\t%d (last %s)\n", meta.Streak.Current, last)
			fmt.Fprintf(w, "theme\t%s\n", meta.Theme)
			return w.Flush()
		}),
	}
}

func newThemeCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "theme [light|dark|auto]",
		Short: "Show or set the stored theme preference",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if len(args) == 1 {
				if err := a.tasks.SetTheme(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.tasks.Meta().Theme)
			return nil
		}),
	}
}

func printTasks(out io.Writer, tasks []model.Task, loc *time.Location) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tPRIORITY\tDUE\tTITLE\tTAGS")
	for _, t := range tasks {
		state := "open"
		switch {
		case t.Archived:
			state = "archived"
		case t.Completed:
			state = "done"
		}
		due := "-"
		if d, ok := t.Due(loc); ok {
			due = d.Format("2006-01-02 15:04")
		}
		title := t.Title
		if len(t.Subtasks) > 0 {
			done := 0
			for _, s := range t.Subtasks {
				if s.Done {
					done++
				}
			}
			title = fmt.Sprintf("%s [%d/%d]", title, done, len(t.Subtasks))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", shortID(t.ID), state, t.Priority, due, title, strings.Join(t.Tags, ","))
	}
	_ = w.Flush()
}

// shortID shows the random tail of an id; the head of a UUIDv7 is a timestamp.
func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}

// resolveID accepts a full id or any unique suffix of one.
func resolveID(tasks *service.TaskService, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errTaskNotFound
	}
	if _, ok := tasks.Get(ref); ok {
		return ref, nil
	}

	var match string
	for _, t := range tasks.Tasks() {
		if strings.HasSuffix(t.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id %q is ambiguous", ref)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", errTaskNotFound, ref)
	}
	return match, nil
}

// patchTime turns a flag into a Patch date: empty clears, garbage fails.
func patchTime(raw string, loc *time.Location, hour, minute int) (*int64, error) {
	ms, ok := parseFlagTime(raw, loc, hour, minute)
	if !ok {
		return nil, fmt.Errorf("%q, want YYYY-MM-DD[ HH:MM]", raw)
	}
	if ms == nil {
		var unset int64
		return &unset, nil
	}
	return ms, nil
}

// parseFlagTime returns nil for an empty flag and false for garbage. A bare
// date gets hour:minute.
func parseFlagTime(raw string, loc *time.Location, hour, minute int) (*int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			ms := model.Millis(t)
			return &ms, true
		}
	}
	if d, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		ms := model.Millis(time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc))
		return &ms, true
	}
	return nil, false
}
