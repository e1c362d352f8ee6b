package main

import (
	"github.com/spf13/cobra"

	"github.com/airadvisor/airadvisor/internal/advisory"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify an AQI value into a health advisory",
	Long: `Classify an AQI value against a tier preset. Profile flags tailor the
recommendations of presets that support them.`,
	RunE: runClassify,
}

var (
	aqiValue      float64
	presetFlag    string
	ageFlag       int
	exposureFlag  int
	conditionFlag string
)

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().Float64Var(&aqiValue, "aqi", 0, "AQI value to classify")
	_ = classifyCmd.MarkFlagRequired("aqi")
	addAdvisoryFlags(classifyCmd)
}

// addAdvisoryFlags registers the preset and profile flags on cmd.
func addAdvisoryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&presetFlag, "preset", "", "tier preset (default from config)")
	f.IntVar(&ageFlag, "age", 30, "age in years")
	f.IntVar(&exposureFlag, "exposure", 1, "expected outdoor exposure, hours")
	f.StringVar(&conditionFlag, "condition", "", "none, respiratory, cardiovascular, allergies, or other")
}

// profileFromFlags returns nil unless a profile flag was set. Unset profile
// flags keep their defaults.
func profileFromFlags(cmd *cobra.Command) (*advisory.Profile, error) {
	f := cmd.Flags()
	if !f.Changed("age") && !f.Changed("exposure") && !f.Changed("condition") {
		return nil, nil
	}
	p, err := advisory.Profile{
		ExposureHours: exposureFlag,
		Age:           ageFlag,
		Condition:     advisory.Condition(conditionFlag),
	}.Normalize()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func runClassify(cmd *cobra.Command, _ []string) error {
	_, c, err := loadComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := profileFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := c.Assessment.Classify(cmd.Context(), presetFlag, aqiValue, p)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), a)
}
