package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type syncStatusView struct {
	State       string     `json:"state"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

var flagSyncWait bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger and inspect synchronization runs",
}

var syncTriggerCmd = &cobra.Command{
	Use:   "trigger <project-id>",
	Short: "Start a synchronization run",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		client := apiClient()
		if _, err := client.Post("/api/v1/projects/"+args[0]+"/sync", nil); err != nil {
			return err
		}
		fmt.Println("Sync started.")

		if !flagSyncWait {
			return nil
		}
		for {
			time.Sleep(2 * time.Second)
			st, err := fetchSyncStatus(client, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("  %-10s %3d%%  %s\n", st.State, st.Progress, st.CurrentStep)
			if st.State != "running" {
				if st.State == "failed" {
					return fmt.Errorf("sync failed: %s", st.Error)
				}
				return nil
			}
		}
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show the current sync state",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		st, err := fetchSyncStatus(apiClient(), args[0])
		if err != nil {
			return err
		}

		switch flagOutput {
		case outputJSON:
			printJSON(st)
		case outputYAML:
			printYAML(st)
		default:
			fmt.Printf("State:    %s\n", st.State)
			fmt.Printf("Progress: %d%%\n", st.Progress)
			if st.CurrentStep != "" {
				fmt.Printf("Step:     %s\n", st.CurrentStep)
			}
			if st.Error != "" {
				fmt.Printf("Error:    %s\n", st.Error)
			}
			fmt.Printf("Started:  %s\n", shortTime(st.StartedAt))
			fmt.Printf("Finished: %s\n", shortTime(st.FinishedAt))
		}
		return nil
	},
}

var syncRunsCmd = &cobra.Command{
	Use:   "runs <project-id>",
	Short: "List recent synchronization runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := apiClient().Get("/api/v1/projects/" + args[0] + "/sync/runs")
		if err != nil {
			return err
		}

		var resp struct {
			Data []struct {
				Outcome          string    `json:"outcome"`
				Message          string    `json:"message"`
				Duration         string    `json:"duration"`
				IssuesFound      int       `json:"issues_found"`
				FindingsUpserted int       `json:"findings_upserted"`
				StaleMarked      int       `json:"stale_marked"`
				StartedAt        time.Time `json:"started_at"`
			} `json:"data"`
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
			t := newTable("STARTED", "OUTCOME", "DURATION", "ISSUES", "UPSERTED", "STALE", "MESSAGE")
			for _, run := range resp.Data {
				started := run.StartedAt
				t.AddRow(shortTime(&started), run.Outcome, run.Duration,
					fmt.Sprintf("%d", run.IssuesFound), fmt.Sprintf("%d", run.FindingsUpserted),
					fmt.Sprintf("%d", run.StaleMarked), truncate(run.Message, 50))
			}
			t.Flush()
		}
		return nil
	},
}

func fetchSyncStatus(client *Client, projectID string) (*syncStatusView, error) {
	data, err := client.Get("/api/v1/projects/" + projectID + "/sync/status")
	if err != nil {
		return nil, err
	}
	var st syncStatusView
	if err := unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func init() {
	syncTriggerCmd.Flags().BoolVar(&flagSyncWait, "wait", false, "Poll until the run finishes")

	syncCmd.AddCommand(syncTriggerCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncRunsCmd)
}
