package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	observePerson  string
	observeType    string
	observeContent string
	observeLimit   int
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Record and inspect behavioral observations",
}

var observeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an observation and queue it for processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		var content map[string]any
		if err := json.Unmarshal([]byte(observeContent), &content); err != nil {
			return fmt.Errorf("--content must be a JSON object: %w", err)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		obs, err := a.observations.Record(cmd.Context(), observePerson, observeType, content, nil)
		if err != nil {
			return err
		}
		fmt.Printf("%s observation %s recorded for %s\n",
			color.GreenString("✓"), obs.ID, obs.PersonID)
		return nil
	},
}

var observeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a person's observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		observations, err := a.observations.ListByPerson(cmd.Context(), observePerson, observeLimit)
		if err != nil {
			return err
		}
		if len(observations) == 0 {
			fmt.Println("No observations.")
			return nil
		}
		for _, obs := range observations {
			content, _ := json.Marshal(obs.Content)
			fmt.Printf("%s  %-16s %s  %s\n",
				obs.CreatedAt.Format("2006-01-02 15:04"), obs.Type, obs.ID[:8], string(content))
		}
		return nil
	},
}

func init() {
	observeAddCmd.Flags().StringVarP(&observePerson, "person", "p", "", "Person ID (required)")
	observeAddCmd.Flags().StringVarP(&observeType, "type", "t", "", "Observation type (required)")
	observeAddCmd.Flags().StringVarP(&observeContent, "content", "c", "{}", "Observation content as JSON")
	observeAddCmd.MarkFlagRequired("person")
	observeAddCmd.MarkFlagRequired("type")

	observeListCmd.Flags().StringVarP(&observePerson, "person", "p", "", "Person ID (required)")
	observeListCmd.Flags().IntVarP(&observeLimit, "limit", "n", 20, "Maximum observations to list")
	observeListCmd.MarkFlagRequired("person")

	observeCmd.AddCommand(observeAddCmd)
	observeCmd.AddCommand(observeListCmd)
	rootCmd.AddCommand(observeCmd)
}
