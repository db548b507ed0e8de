package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type findingView struct {
	ID          string `json:"id"`
	SonarKey    string `json:"sonar_key"`
	Severity    string `json:"severity"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	LocalStatus string `json:"local_status"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	Priority    int    `json:"priority"`
	Component   string `json:"component,omitempty"`
	Message     string `json:"message,omitempty"`
}

var (
	flagFindingSeverity    string
	flagFindingType        string
	flagFindingLocalStatus string
	flagFindingAssignee    string
	flagFindingPage        int
	flagFindingPerPage     int

	flagSetStatus   string
	flagSetAssignee string
	flagSetPriority int
	flagCommentText string
	flagPerformedBy string
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Browse and triage findings",
}

var findingsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		q := url.Values{}
		if flagFindingSeverity != "" {
			q.Set("severity", flagFindingSeverity)
		}
		if flagFindingType != "" {
			q.Set("type", flagFindingType)
		}
		if flagFindingLocalStatus != "" {
			q.Set("local_status", flagFindingLocalStatus)
		}
		if flagFindingAssignee != "" {
			q.Set("assigned_to", flagFindingAssignee)
		}
		q.Set("page", fmt.Sprintf("%d", flagFindingPage))
		q.Set("per_page", fmt.Sprintf("%d", flagFindingPerPage))

		data, err := apiClient().Get("/api/v1/projects/" + args[0] + "/findings?" + q.Encode())
		if err != nil {
			return err
		}

		var resp struct {
			Data       []findingView `json:"data"`
			Total      int64         `json:"total"`
			Page       int           `json:"page"`
			TotalPages int           `json:"total_pages"`
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
			t := newTable("ID", "SEVERITY", "TYPE", "WORKFLOW", "ASSIGNEE", "PRI", "MESSAGE")
			for _, f := range resp.Data {
				assignee := f.AssignedTo
				if assignee == "" {
					assignee = "-"
				}
				t.AddRow(f.ID, f.Severity, f.Type, f.LocalStatus, assignee,
					fmt.Sprintf("%d", f.Priority), truncate(f.Message, 60))
			}
			t.Flush()
			fmt.Printf("\n%d findings (page %d/%d)\n", resp.Total, resp.Page, resp.TotalPages)
		}
		return nil
	},
}

var findingsUpdateCmd = &cobra.Command{
	Use:   "update <finding-id>",
	Short: "Update the triage workflow of a finding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{}
		if flagSetStatus != "" {
			body["local_status"] = flagSetStatus
		}
		if cmd.Flags().Changed("assignee") {
			body["assigned_to"] = flagSetAssignee
		}
		if cmd.Flags().Changed("priority") {
			body["priority"] = flagSetPriority
		}
		if flagPerformedBy != "" {
			body["performed_by"] = flagPerformedBy
		}
		if len(body) == 0 {
			return fmt.Errorf("nothing to update, pass --status, --assignee or --priority")
		}

		if _, err := apiClient().Patch("/api/v1/findings/"+args[0], body); err != nil {
			return err
		}
		fmt.Println("Finding updated.")
		return nil
	},
}

var findingsCommentCmd = &cobra.Command{
	Use:   "comment <finding-id>",
	Short: "Add a comment to a finding",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		body := map[string]any{"text": flagCommentText}
		if flagPerformedBy != "" {
			body["author"] = flagPerformedBy
		}
		if _, err := apiClient().Post("/api/v1/findings/"+args[0]+"/comments", body); err != nil {
			return err
		}
		fmt.Println("Comment added.")
		return nil
	},
}

func init() {
	findingsListCmd.Flags().StringVar(&flagFindingSeverity, "severity", "", "Filter by severity (comma-separated)")
	findingsListCmd.Flags().StringVar(&flagFindingType, "type", "", "Filter by finding type (comma-separated)")
	findingsListCmd.Flags().StringVar(&flagFindingLocalStatus, "workflow", "", "Filter by workflow status (comma-separated)")
	findingsListCmd.Flags().StringVar(&flagFindingAssignee, "assignee", "", "Filter by assignee")
	findingsListCmd.Flags().IntVar(&flagFindingPage, "page", 1, "Page number")
	findingsListCmd.Flags().IntVar(&flagFindingPerPage, "per-page", 50, "Page size")

	findingsUpdateCmd.Flags().StringVar(&flagSetStatus, "status", "", "New workflow status")
	findingsUpdateCmd.Flags().StringVar(&flagSetAssignee, "assignee", "", "Assignee")
	findingsUpdateCmd.Flags().IntVar(&flagSetPriority, "priority", 0, "Priority (0-4)")
	findingsUpdateCmd.Flags().StringVar(&flagPerformedBy, "by", "", "Actor recorded in the audit trail")

	findingsCommentCmd.Flags().StringVar(&flagCommentText, "text", "", "Comment text (required)")
	findingsCommentCmd.Flags().StringVar(&flagPerformedBy, "by", "", "Comment author")
	_ = findingsCommentCmd.MarkFlagRequired("text")

	findingsCmd.AddCommand(findingsListCmd)
	findingsCmd.AddCommand(findingsUpdateCmd)
	findingsCmd.AddCommand(findingsCommentCmd)
}
