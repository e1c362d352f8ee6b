package main

import (
	"github.com/spf13/cobra"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate an AQI and its advisory",
	Long:  `Estimate the Air Quality Index from pollutant concentrations or weather readings.`,
}

var estimatePollutantsCmd = &cobra.Command{
	Use:   "pollutants",
	Short: "Estimate from pollutant concentrations",
	Long: `Estimate the AQI from CO (mg/m³) and NO2, PM2.5, SO2, O3 (µg/m³).
The formula method needs no model; --method model uses the configured model.`,
	RunE: runEstimatePollutants,
}

var estimateWeatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Estimate from weather readings",
	Long:  `Estimate the AQI from daily weather readings with the configured model.`,
	RunE:  runEstimateWeather,
}

var estimateLiveCmd = &cobra.Command{
	Use:   "live",
	Short: "Estimate from current station measurements at a location",
	Long: `Interpolate the latest monitoring-station measurements at --lat/--lon and
estimate the AQI with the formula. Needs air_quality.enabled (AIRQUALITY_ENABLED=true).`,
	RunE: runEstimateLive,
}

var (
	latFlag float64
	lonFlag float64
)

var (
	pollutants     aqi.PollutantReading
	weatherReading aqi.WeatherReading
	method         string
)

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.AddCommand(estimatePollutantsCmd)
	estimateCmd.AddCommand(estimateWeatherCmd)
	estimateCmd.AddCommand(estimateLiveCmd)

	pf := estimatePollutantsCmd.Flags()
	pf.Float64Var(&pollutants.CO, "co", 0, "carbon monoxide, mg/m³")
	pf.Float64Var(&pollutants.NO2, "no2", 0, "nitrogen dioxide, µg/m³")
	pf.Float64Var(&pollutants.PM25, "pm25", 0, "fine particulate matter, µg/m³")
	pf.Float64Var(&pollutants.SO2, "so2", 0, "sulphur dioxide, µg/m³")
	pf.Float64Var(&pollutants.O3, "o3", 0, "ozone, µg/m³")
	pf.StringVar(&method, "method", assessment.MethodFormula, "formula or model")
	addAdvisoryFlags(estimatePollutantsCmd)

	wf := estimateWeatherCmd.Flags()
	wf.Float64Var(&weatherReading.T, "t", 0, "average temperature, °C")
	wf.Float64Var(&weatherReading.TM, "tmax", 0, "maximum temperature, °C")
	wf.Float64Var(&weatherReading.Tm, "tmin", 0, "minimum temperature, °C")
	wf.Float64Var(&weatherReading.SLP, "slp", 0, "sea level pressure, hPa")
	wf.Float64Var(&weatherReading.H, "h", 0, "relative humidity, %")
	wf.Float64Var(&weatherReading.VV, "vv", 0, "visibility, km")
	wf.Float64Var(&weatherReading.V, "v", 0, "wind speed, km/h")
	wf.Float64Var(&weatherReading.VM, "vm", 0, "maximum wind speed, km/h")
	addAdvisoryFlags(estimateWeatherCmd)

	lf := estimateLiveCmd.Flags()
	lf.Float64Var(&latFlag, "lat", 0, "latitude")
	lf.Float64Var(&lonFlag, "lon", 0, "longitude")
	_ = estimateLiveCmd.MarkFlagRequired("lat")
	_ = estimateLiveCmd.MarkFlagRequired("lon")
	addAdvisoryFlags(estimateLiveCmd)
}

func runEstimatePollutants(cmd *cobra.Command, _ []string) error {
	_, c, err := loadComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := profileFromFlags(cmd)
	if err != nil {
		return err
	}
	preset := presetFlag
	if preset == "" {
		preset = advisory.PresetSixTier
	}

	res, err := c.Assessment.AssessPollutants(cmd.Context(), pollutants, method, preset, p)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runEstimateWeather(cmd *cobra.Command, _ []string) error {
	_, c, err := loadComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := profileFromFlags(cmd)
	if err != nil {
		return err
	}

	res, err := c.Assessment.AssessWeather(cmd.Context(), weatherReading, presetFlag, p)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runEstimateLive(cmd *cobra.Command, _ []string) error {
	_, c, err := loadComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := profileFromFlags(cmd)
	if err != nil {
		return err
	}

	res, err := c.Assessment.AssessLivePollutants(cmd.Context(), latFlag, lonFlag, presetFlag, p)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
