package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/personakit/personakit/internal/feedback"
)

var (
	fbPersona   string
	fbRule      string
	fbMapper    string
	fbVersion   int
	fbHelpful   bool
	fbUnhelpful bool
	fbRating    int
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Submit and inspect persona feedback",
}

var feedbackSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit feedback about a persona or one of its suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if fbHelpful && fbUnhelpful {
			return fmt.Errorf("--helpful and --unhelpful are mutually exclusive")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		fb := feedback.Feedback{
			PersonaID:     fbPersona,
			RuleID:        fbRule,
			MapperID:      fbMapper,
			MapperVersion: fbVersion,
		}
		if fbHelpful || fbUnhelpful {
			v := fbHelpful
			fb.Helpful = &v
		}
		if fbRating > 0 {
			fb.Rating = &fbRating
		}

		saved, err := a.feedback.Submit(cmd.Context(), fb)
		if err != nil {
			return err
		}
		fmt.Printf("%s feedback %s recorded\n", color.GreenString("✓"), saved.ID)
		return nil
	},
}

var feedbackSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show aggregated feedback for a mapper",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		sum, err := a.feedback.Summarize(cmd.Context(), fbMapper)
		if err != nil {
			return err
		}
		printHeader("📋 Feedback Summary")
		fmt.Printf("Mapper:    %s\n", sum.MapperID)
		fmt.Printf("Total:     %d\n", sum.Total)
		fmt.Printf("Helpful:   %d\n", sum.Helpful)
		fmt.Printf("Unhelpful: %d\n", sum.Unhelpful)
		fmt.Printf("Avg score: %.2f\n", sum.AverageScore)
		return nil
	},
}

func init() {
	feedbackSubmitCmd.Flags().StringVar(&fbPersona, "persona", "", "Persona ID (required)")
	feedbackSubmitCmd.Flags().StringVar(&fbRule, "rule", "", "Rule ID the feedback targets")
	feedbackSubmitCmd.Flags().StringVar(&fbMapper, "mapper", "", "Mapper ID the persona came from")
	feedbackSubmitCmd.Flags().IntVar(&fbVersion, "mapper-version", 0, "Mapper version the persona came from")
	feedbackSubmitCmd.Flags().BoolVar(&fbHelpful, "helpful", false, "Mark the suggestion as helpful")
	feedbackSubmitCmd.Flags().BoolVar(&fbUnhelpful, "unhelpful", false, "Mark the suggestion as unhelpful")
	feedbackSubmitCmd.Flags().IntVar(&fbRating, "rating", 0, "Overall rating 1-5")
	feedbackSubmitCmd.MarkFlagRequired("persona")

	feedbackSummaryCmd.Flags().StringVar(&fbMapper, "mapper", "daily_work_optimizer", "Mapper ID")

	feedbackCmd.AddCommand(feedbackSubmitCmd)
	feedbackCmd.AddCommand(feedbackSummaryCmd)
	rootCmd.AddCommand(feedbackCmd)
}
