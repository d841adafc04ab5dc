package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/personakit/personakit/internal/narrative"
	"github.com/personakit/personakit/internal/persona"
	"github.com/personakit/personakit/internal/rules"
)

var (
	personaPerson  string
	personaMapper  string
	personaContext string
	personaTTL     time.Duration
	personaJSON    bool
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Generate personas from a person's mindscape",
}

var personaGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a persona for a person using a mapper",
	RunE:  runPersonaGenerate,
}

func init() {
	personaGenerateCmd.Flags().StringVarP(&personaPerson, "person", "p", "", "Person ID (required)")
	personaGenerateCmd.Flags().StringVarP(&personaMapper, "mapper", "m", "daily_work_optimizer", "Mapper ID")
	personaGenerateCmd.Flags().StringVarP(&personaContext, "context", "c", "{}", "Request context as JSON")
	personaGenerateCmd.Flags().DurationVar(&personaTTL, "ttl", 0, "Persona lifetime override (0 uses the mapper's TTL)")
	personaGenerateCmd.Flags().BoolVar(&personaJSON, "json", false, "Print the full persona as JSON")
	personaGenerateCmd.MarkFlagRequired("person")

	personaCmd.AddCommand(personaGenerateCmd)
	rootCmd.AddCommand(personaCmd)
}

func runPersonaGenerate(cmd *cobra.Command, args []string) error {
	var reqCtx map[string]any
	if err := json.Unmarshal([]byte(personaContext), &reqCtx); err != nil {
		return fmt.Errorf("--context must be a JSON object: %w", err)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	var searcher rules.Searcher
	if a.cfg.Narrative.Enabled {
		searcher = narrative.NewClient(a.cfg.Narrative.BaseURL, a.cfg.Narrative.Timeout)
	}
	engine := rules.NewEngine(searcher, a.cfg.Engine.TopK, a.cfg.Engine.SearchTimeout, a.logger)
	assembler := persona.NewAssembler(a.mindscapes, a.mappers, engine, persona.NewRegistry(a.logger), a.logger)

	p, err := assembler.Get(cmd.Context(), personaPerson, personaMapper, reqCtx, personaTTL)
	if err != nil {
		var missing *persona.MissingTraitsError
		if errors.As(err, &missing) {
			fmt.Printf("%s not enough data yet: missing %v\n",
				color.YellowString("!"), missing.Missing)
			return nil
		}
		return err
	}

	if personaJSON {
		out, _ := json.MarshalIndent(p, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	printHeader("🧠 Persona")
	fmt.Printf("Person:  %s\n", p.PersonID)
	fmt.Printf("Mapper:  %s v%d (mindscape v%d)\n", p.MapperID, p.MapperVersion, p.MindscapeVersion)
	fmt.Printf("Expires: %s\n\n", p.ExpiresAt.Format("2006-01-02 15:04"))
	if len(p.Suggestions) == 0 {
		fmt.Println("No suggestions matched.")
		return nil
	}
	for _, s := range p.Suggestions {
		fmt.Printf("%s %s  %s\n",
			color.GreenString("•"), s.Text, color.HiBlackString("(%s, w=%.2f)", s.RuleID, s.Weight))
	}
	return nil
}
