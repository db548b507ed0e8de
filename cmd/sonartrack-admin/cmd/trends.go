package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagTrendLimit int

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Inspect trend history and analysis",
}

var trendsHistoryCmd = &cobra.Command{
	Use:   "history <project-id>",
	Short: "Show the snapshot history",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := fmt.Sprintf("/api/v1/projects/%s/trends?limit=%d", args[0], flagTrendLimit)
		data, err := apiClient().Get(path)
		if err != nil {
			return err
		}

		var resp struct {
			ComponentKey string `json:"component_key"`
			Snapshots    []struct {
				Date    string `json:"date"`
				Summary struct {
					High   int `json:"high"`
					Medium int `json:"medium"`
					Low    int `json:"low"`
				} `json:"summary"`
				TotalIssues       int     `json:"totalIssues"`
				Coverage          float64 `json:"coverage"`
				QualityGateStatus string  `json:"qualityGateStatus"`
			} `json:"snapshots"`
		}
		if err := unmarshal(data, &resp); err != nil {
			return err
		}

		switch flagOutput {
		case outputJSON:
			printJSON(resp)
		case outputYAML:
			printYAML(resp)
		default:
			t := newTable("DATE", "HIGH", "MEDIUM", "LOW", "TOTAL", "COVERAGE", "GATE")
			for _, s := range resp.Snapshots {
				gate := s.QualityGateStatus
				if gate == "" {
					gate = "-"
				}
				t.AddRow(s.Date,
					fmt.Sprintf("%d", s.Summary.High), fmt.Sprintf("%d", s.Summary.Medium),
					fmt.Sprintf("%d", s.Summary.Low), fmt.Sprintf("%d", s.TotalIssues),
					fmt.Sprintf("%.1f%%", s.Coverage), gate)
			}
			t.Flush()
		}
		return nil
	},
}

var trendsAnalysisCmd = &cobra.Command{
	Use:   "analysis <project-id>",
	Short: "Show the computed trend analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := apiClient().Get("/api/v1/projects/" + args[0] + "/trends/analysis")
		if err != nil {
			return err
		}

		var analysis map[string]any
		if err := unmarshal(data, &analysis); err != nil {
			return err
		}

		switch flagOutput {
		case outputYAML:
			printYAML(analysis)
		default:
			printJSON(analysis)
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Generate the aggregated findings report",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := apiClient().Get("/api/v1/projects/" + args[0] + "/report")
		if err != nil {
			return err
		}

		var rep map[string]any
		if err := unmarshal(data, &rep); err != nil {
			return err
		}

		switch flagOutput {
		case outputYAML:
			printYAML(rep)
		default:
			printJSON(rep)
		}
		return nil
	},
}

func init() {
	trendsHistoryCmd.Flags().IntVar(&flagTrendLimit, "limit", 30, "Number of most recent snapshots")

	trendsCmd.AddCommand(trendsHistoryCmd)
	trendsCmd.AddCommand(trendsAnalysisCmd)
}
