package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var mindscapePerson string

var mindscapeCmd = &cobra.Command{
	Use:   "mindscape",
	Short: "Inspect accumulated trait state",
}

var mindscapeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a person's current traits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		ms, err := a.mindscapes.Get(cmd.Context(), mindscapePerson)
		if err != nil {
			return err
		}

		printHeader("🧩 Mindscape")
		fmt.Printf("Person:  %s\n", ms.PersonID)
		fmt.Printf("Version: %d\n\n", ms.Version)
		if len(ms.Traits) == 0 {
			fmt.Println("No traits yet.")
			return nil
		}

		paths := make([]string, 0, len(ms.Traits))
		for p := range ms.Traits {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			entry := ms.Traits[p]
			value, _ := json.Marshal(entry.Value)
			fmt.Printf("%-32s %s  (confidence=%.2f, samples=%d)\n",
				p, string(value), entry.Confidence, entry.SampleSize)
		}
		return nil
	},
}

func init() {
	mindscapeShowCmd.Flags().StringVarP(&mindscapePerson, "person", "p", "", "Person ID (required)")
	mindscapeShowCmd.MarkFlagRequired("person")

	mindscapeCmd.AddCommand(mindscapeShowCmd)
	rootCmd.AddCommand(mindscapeCmd)
}
