package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ignatij/taskflow/internal/config"
	"github.com/ignatij/taskflow/internal/log"
	"github.com/ignatij/taskflow/internal/notify"
	internal_storage "github.com/ignatij/taskflow/internal/storage"
	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/service"
	"github.com/spf13/cobra"
)

// SetupCLI registers the task commands on rootCmd.
func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("db", "", "Database connection string (defaults to DATABASE_URL or DB_* env vars)")
	rootCmd.PersistentFlags().String("actor", "", "ID of the acting user")

	tasksCmd := &cobra.Command{Use: "tasks", Short: "Inspect and mutate tasks"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			title, _ := cmd.Flags().GetString("title")
			due, _ := cmd.Flags().GetString("due")
			department, _ := cmd.Flags().GetString("department")
			priority, _ := cmd.Flags().GetString("priority")
			dueDate, err := time.Parse("2006-01-02", due)
			if err != nil {
				fail("invalid --due date (want YYYY-MM-DD): %v", err)
			}
			withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
				t, err := svc.CreateTask(ctx, actor(cmd), service.NewTask{
					Title:      title,
					DueDate:    dueDate,
					Department: models.Department(department),
					Priority:   models.Priority(priority),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Created task '%s' with ID %s\n", t.Title, t.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("title", "", "Task title")
	createCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	createCmd.Flags().String("department", string(models.GeneralDepartment), "Department")
	createCmd.Flags().String("priority", string(models.MediumPriority), "Priority (Low | Medium | High | Urgent)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List top-level tasks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			department, _ := cmd.Flags().GetString("department")
			assignee, _ := cmd.Flags().GetString("assignee")
			archived, _ := cmd.Flags().GetBool("archived")
			withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
				tasks, err := svc.ListTasks(ctx, models.TaskFilter{
					Department:      models.Department(department),
					AssignedTo:      assignee,
					IncludeArchived: archived,
				})
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintf(os.Stdout, "No tasks found.\n")
					return nil
				}
				fmt.Fprintf(os.Stdout, "Tasks:\n")
				for _, t := range tasks {
					fmt.Fprintf(os.Stdout, "- ID: %s, Title: %s, Status: %s, Progress: %d%%, Due: %s\n",
						t.ID, t.Title, t.Status, t.ProgressPercentage, t.DueDate.Format("2006-01-02"))
				}
				return nil
			})
		},
	}
	listCmd.Flags().String("department", "", "Only tasks of this department")
	listCmd.Flags().String("assignee", "", "Only tasks assigned to this user")
	listCmd.Flags().Bool("archived", false, "Include archived tasks")

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a task as JSON",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
				t, err := svc.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status [id] [status]",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			status := models.TaskStatus(args[1])
			withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
				t, err := svc.UpdateTask(ctx, args[0], actor(cmd), service.TaskPatch{Status: &status})
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Updated the status of task %s to '%s'\n", t.ID, t.Status)
				return nil
			})
		},
	}

	activityCmd := &cobra.Command{
		Use:   "activity [id]",
		Short: "Print a task's activity log, newest first",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
				entries, err := svc.ActivityLog(ctx, args[0])
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(os.Stdout, "%s  %-22s %s: %s\n",
						e.Timestamp.Format(time.RFC3339), e.Type, e.User, e.Description)
				}
				return nil
			})
		},
	}

	archiveCmd := &cobra.Command{
		Use:   "archive [id]",
		Short: "Archive a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withService(cmd, func(ctx context.Context, svc *service.TaskService) error {
				if _, err := svc.ArchiveTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Archived task %s\n", args[0])
				return nil
			})
		},
	}

	tasksCmd.AddCommand(createCmd, listCmd, showCmd, statusCmd, activityCmd, archiveCmd)
	rootCmd.AddCommand(tasksCmd)
}

func actor(cmd *cobra.Command) string {
	a, _ := cmd.Flags().GetString("actor")
	return a
}

func dbConnStr(cmd *cobra.Command, cfg config.Config) string {
	if s, _ := cmd.Flags().GetString("db"); s != "" {
		return s
	}
	return cfg.DatabaseURL
}

// withService opens the store, runs fn and flushes pending notifications.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.TaskService) error) {
	cfg, err := config.Load()
	if err != nil {
		fail("invalid configuration: %v", err)
	}
	log.SetLevel(cfg.LogLevel)
	connStr := dbConnStr(cmd, cfg)
	log.GetLogger().Debugf("Running %s with db: %s", cmd.Name(), connStr)
	store := initStore(connStr)
	defer store.Close()

	ctx := context.Background()
	dispatcher := notify.NewDispatcher(ctx, notify.StoreSink{Store: store}, log.GetLogger())
	dispatcher.Start(1, cfg.NotifyQueueSize)
	defer dispatcher.Stop()

	svc := service.NewTaskService(store, store, dispatcher, log.GetLogger())
	if err := fn(ctx, svc); err != nil {
		log.GetLogger().Errorf("%s failed: %v", cmd.Name(), err)
		dispatcher.Stop()
		store.Close()
		fail("%v", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	if dbConnStr == "" {
		fail("--db flag, DATABASE_URL or complete DB_* env vars required")
	}
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
