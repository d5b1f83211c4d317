package main

import (
	"fmt"
	"io"
	"strings"

	"medichat-server/internal/medicine"
	"medichat-server/internal/triage"

	"github.com/spf13/cobra"
)

var triageForm triage.Form

// triageCmd classifies a form offline, without a database or language model.
var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Classify symptoms and list matching reference medicines",
	Example: `  medichat-server triage --symptoms "fever, cough" --age 1
  medichat-server triage --symptoms "back pain" --duration 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(triageForm.Symptoms) == "" {
			return fmt.Errorf("--symptoms is required")
		}
		kb, err := medicine.LoadDefault()
		if err != nil {
			return err
		}
		return printTriage(cmd.OutOrStdout(), kb, triageForm)
	},
}

func init() {
	flags := triageCmd.Flags()
	flags.StringVar(&triageForm.Age, "age", "", "Patient age in whole years")
	flags.StringVar(&triageForm.Symptoms, "symptoms", "", "Comma separated symptoms")
	flags.StringVar(&triageForm.Duration, "duration", "", "Duration in days")
	flags.StringVar(&triageForm.Allergies, "allergies", "", "Known allergies")
	flags.StringVar(&triageForm.Conditions, "conditions", "", "Known conditions")
}

// referenceMedicines lists table entries whose uses match any of the symptoms.
func referenceMedicines(kb *medicine.KnowledgeBase, symptoms string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(symptoms, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for _, m := range kb.SearchByUse(s) {
			if !seen[m.Name] {
				seen[m.Name] = true
				names = append(names, m.Name)
			}
		}
	}
	return names
}

func printTriage(w io.Writer, kb *medicine.KnowledgeBase, form triage.Form) error {
	severity := triage.Classify(form)
	if _, err := fmt.Fprintf(w, "severity: %s\n", severity); err != nil {
		return err
	}
	if severity == triage.SeverityCritical {
		if _, err := fmt.Fprintln(w, "seek emergency care now"); err != nil {
			return err
		}
	}

	names := referenceMedicines(kb, form.Symptoms)
	if len(names) == 0 {
		_, err := fmt.Fprintln(w, "reference medicines: none")
		return err
	}
	_, err := fmt.Fprintf(w, "reference medicines: %s\n", strings.Join(names, ", "))
	return err
}
