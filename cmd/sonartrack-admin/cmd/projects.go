package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// projectView mirrors the server's project response.
type projectView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	BaseURL      string     `json:"base_url"`
	ComponentKey string     `json:"component_key"`
	Branch       string     `json:"branch,omitempty"`
	SyncEnabled  bool       `json:"sync_enabled"`
	SyncSchedule string     `json:"sync_schedule,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
}

var (
	flagProjectName     string
	flagProjectURL      string
	flagProjectKey      string
	flagProjectBranch   string
	flagProjectToken    string
	flagProjectSchedule string
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage tracked projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked projects",
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := apiClient().Get("/api/v1/projects")
		if err != nil {
			return err
		}

		var resp struct {
			Data []projectView `json:"data"`
		}
		if err := unmarshal(data, &resp); err != nil {
			return err
		}

		switch flagOutput {
		case outputJSON:
			printJSON(resp.Data)
		case outputYAML:
			printYAML(resp.Data)
		default:
			t := newTable("ID", "NAME", "COMPONENT KEY", "BRANCH", "SYNC", "SCHEDULE", "LAST SYNC")
			for _, p := range resp.Data {
				branch := p.Branch
				if branch == "" {
					branch = "-"
				}
				schedule := p.SyncSchedule
				if schedule == "" {
					schedule = "-"
				}
				t.AddRow(p.ID, truncate(p.Name, 30), truncate(p.ComponentKey, 40), branch,
					boolToStr(p.SyncEnabled), schedule, shortTime(p.LastSyncAt))
			}
			t.Flush()
		}
		return nil
	},
}

var projectsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new tracked project",
	RunE: func(_ *cobra.Command, _ []string) error {
		body := map[string]any{
			"name":          flagProjectName,
			"base_url":      flagProjectURL,
			"component_key": flagProjectKey,
		}
		if flagProjectBranch != "" {
			body["branch"] = flagProjectBranch
		}
		if flagProjectToken != "" {
			body["token"] = flagProjectToken
		}
		if flagProjectSchedule != "" {
			body["sync_schedule"] = flagProjectSchedule
		}

		data, err := apiClient().Post("/api/v1/projects", body)
		if err != nil {
			return err
		}

		var p projectView
		if err := unmarshal(data, &p); err != nil {
			return err
		}
		fmt.Printf("Project %q registered (id: %s)\n", p.Name, p.ID)
		return nil
	},
}

var projectsGetCmd = &cobra.Command{
	Use:   "get <project-id>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := apiClient().Get("/api/v1/projects/" + args[0])
		if err != nil {
			return err
		}

		var p projectView
		if err := unmarshal(data, &p); err != nil {
			return err
		}

		switch flagOutput {
		case outputYAML:
			printYAML(p)
		default:
			printJSON(p)
		}
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and all its findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := apiClient().Delete("/api/v1/projects/" + args[0]); err != nil {
			return err
		}
		fmt.Println("Project deleted.")
		return nil
	},
}

func init() {
	projectsAddCmd.Flags().StringVar(&flagProjectName, "name", "", "Project display name (required)")
	projectsAddCmd.Flags().StringVar(&flagProjectURL, "url", "", "Upstream server base URL (required)")
	projectsAddCmd.Flags().StringVar(&flagProjectKey, "key", "", "Upstream component key (required)")
	projectsAddCmd.Flags().StringVar(&flagProjectBranch, "branch", "", "Branch to track")
	projectsAddCmd.Flags().StringVar(&flagProjectToken, "token", "", "Upstream API token")
	projectsAddCmd.Flags().StringVar(&flagProjectSchedule, "schedule", "", "Cron expression for scheduled syncs")
	_ = projectsAddCmd.MarkFlagRequired("name")
	_ = projectsAddCmd.MarkFlagRequired("url")
	_ = projectsAddCmd.MarkFlagRequired("key")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsAddCmd)
	projectsCmd.AddCommand(projectsGetCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
}
