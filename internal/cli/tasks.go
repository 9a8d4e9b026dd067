package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/output"
	"github.com/lucasfdcampos/lead-scraper/internal/site"
)

var taskOpts struct {
	site   string
	notes  string
	status string
	list   int64
	batch  int64
	out    string
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskOpts.site, "site", "s", "", "Directory to scrape: angi or yellow_pages (default angi).")
	taskAddCmd.Flags().StringVar(&taskOpts.notes, "notes", "", "Free-form note stored with the task.")
	taskListCmd.Flags().StringVar(&taskOpts.status, "status", "", "Only list tasks in this status.")
	taskListCmd.Flags().Int64VarP(&taskOpts.list, "limit", "n", 50, "Maximum number of tasks listed.")
	taskProcessCmd.Flags().Int64VarP(&taskOpts.batch, "limit", "n", 20, "Maximum number of pending tasks worked.")
	taskExportCmd.Flags().StringVarP(&taskOpts.out, "out", "o", "", "Workbook path (required).")

	tasksCmd.AddCommand(taskAddCmd, taskListCmd, taskProcessCmd, taskExportCmd)
	rootCmd.AddCommand(tasksCmd)
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manages the queue of scrapes that repeat until a lead target is met.",
}

// mongoApp connects only MongoDB-backed state; tasks cannot run without it.
func mongoApp(cmd *cobra.Command) (*app, error) {
	a := newApp(cfg, 1)
	a.connect(cmd.Context())
	if a.mongo == nil {
		a.close()
		return nil, errNoMongo
	}
	return a, nil
}

var taskAddCmd = &cobra.Command{
	Use:     "add <keyword> <location>",
	Short:   "Queues a task.",
	Example: `  leadscraper tasks add plumber "Houston, TX" --site yellow_pages`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyword, loc := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
		if keyword == "" || loc == "" {
			return eris.New("keyword and location are required")
		}
		s, err := site.Lookup(taskOpts.site)
		if err != nil {
			return err
		}

		a, err := mongoApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		id, err := a.mongo.CreateTask(cmd.Context(), &domain.Task{Keyword: keyword, Location: loc, Site: s.Name, Notes: taskOpts.notes})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists tasks, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if taskOpts.status != "" && !domain.ValidTaskStatus(taskOpts.status) {
			return eris.Errorf("unknown status %q", taskOpts.status)
		}
		a, err := mongoApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		tasks, err := a.mongo.ListTasks(cmd.Context(), taskOpts.status, taskOpts.list)
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"ID", "Keyword", "Location", "Site", "Status", "Leads", "Cycles", "Review"})
		for _, task := range tasks {
			t.AppendRow(table.Row{task.ID, task.Keyword, task.Location, task.Site, task.Status,
				strconv.Itoa(task.LeadsCount), strconv.Itoa(task.Cycles), task.ReviewReason})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

var taskProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Works pending tasks, oldest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := mongoApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		reports, err := a.processPending(cmd.Context(), taskOpts.batch)
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"ID", "Status", "Cycles", "Leads", "Error"})
		for _, r := range reports {
			t.AppendRow(table.Row{r.ID, r.Status, r.Cycles, r.Leads, r.Error})
		}
		t.AppendFooter(table.Row{fmt.Sprintf("Processed: %d", len(reports))})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

var taskExportCmd = &cobra.Command{
	Use:     "export <task-id>...",
	Short:   "Writes the phone-bearing leads of tasks to one workbook.",
	Example: `  leadscraper tasks export 6710a1b2c3d4e5f6a7b8c9d0 6710a1b2c3d4e5f6a7b8c9d1 -o leads.xlsx`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if taskOpts.out == "" {
			return eris.New("export needs --out")
		}
		a, err := mongoApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		leads, err := a.mongo.TaskLeads(cmd.Context(), args)
		if err != nil {
			return err
		}
		f, err := os.Create(taskOpts.out)
		if err != nil {
			return eris.Wrap(err, "tasks: create output")
		}
		defer f.Close()
		if err := output.WriteBulkXLSX(f, leads); err != nil {
			return err
		}
		return a.mongo.MarkTasksExported(cmd.Context(), args)
	},
}
