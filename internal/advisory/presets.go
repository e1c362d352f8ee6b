package advisory

import (
	"errors"
	"fmt"
	"sort"
)

// Preset names.
const (
	PresetSixTier      = "six-tier"
	PresetFiveTier     = "five-tier"
	PresetSixTierBrief = "six-tier-brief"
)

// ErrUnknownPreset is returned when a preset name is not registered.
var ErrUnknownPreset = errors.New("unknown advisory preset")

var presets = map[string]*Table{
	PresetSixTier:      sixTier(),
	PresetFiveTier:     fiveTier(),
	PresetSixTierBrief: sixTierBrief(),
}

func init() {
	for name, t := range presets {
		if err := t.Validate(); err != nil {
			panic(fmt.Sprintf("advisory preset %s: %v", name, err))
		}
	}
}

// Lookup returns the named preset table.
func Lookup(name string) (*Table, error) {
	t, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return t, nil
}

// Presets returns every registered table sorted by name.
func Presets() []*Table {
	out := make([]*Table, 0, len(presets))
	for _, t := range presets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// fixed returns a recommendation func that ignores the profile.
func fixed(recs ...string) func(*Profile) ([]string, string) {
	return func(*Profile) ([]string, string) {
		return recs, ""
	}
}

func sixTier() *Table {
	return &Table{
		Name:        PresetSixTier,
		Description: "Six tiers with yoga, food, and routine tips. Used for pollutant formula estimates.",
		Tiers: []Tier{
			{
				Level:       1,
				Label:       "Good",
				Max:         50,
				Range:       "0-50",
				Color:       "green",
				Summary:     "Minimal impact on health.",
				Description: "Minimal impact on health. Enjoy all activities freely.",
				Recommendations: fixed(
					"Yoga: Tadasana (Mountain Pose), Vrikshasana (Tree Pose)",
					"Food: Include tulsi tea, fresh fruits like apples, and omega-3 rich foods like flaxseeds.",
					"Health routine: Daily morning walk, 10-minute deep breathing.",
				),
			},
			{
				Level:       2,
				Label:       "Satisfactory",
				Max:         100,
				Range:       "51-100",
				Color:       "yellow",
				Summary:     "Minor discomfort to sensitive individuals.",
				Description: "Minor discomfort to sensitive individuals. Avoid long outdoor activities if you have asthma or other issues.",
				Recommendations: fixed(
					"Yoga: Anulom Vilom, Bhramari Pranayama",
					"Food: Turmeric milk, steamed vegetables, antioxidant-rich fruits like berries.",
					"Health routine: Hydrate well and keep indoor plants for air purification.",
				),
			},
			{
				Level:       3,
				Label:       "Moderate",
				Max:         200,
				Range:       "101-200",
				Color:       "orange",
				Summary:     "Can cause discomfort in lungs and throat.",
				Description: "Can cause discomfort in lungs and throat. Sensitive groups should minimize outdoor exertion.",
				Recommendations: fixed(
					"Yoga: Sheetali Pranayama, gentle Surya Namaskar indoors",
					"Food: Use ginger, garlic, and honey; drink warm water with lemon.",
					"Health routine: Use air-purifying masks and avoid morning jogs.",
				),
			},
			{
				Level:       4,
				Label:       "Poor",
				Max:         300,
				Range:       "201-300",
				Color:       "red",
				Summary:     "Noticeable discomfort.",
				Description: "Noticeable discomfort. Avoid outdoor activities. People with heart/lung conditions must stay indoors.",
				Recommendations: fixed(
					"Yoga: Practice Bhramari and deep belly breathing indoors.",
					"Food: Avoid fried/spicy food; eat light meals; include green tea and citrus fruits.",
					"Health routine: Use HEPA air purifiers; avoid heavy workouts.",
				),
			},
			{
				Level:       5,
				Label:       "Very Poor",
				Max:         400,
				Range:       "301-400",
				Color:       "brown",
				Summary:     "High risk of respiratory illness.",
				Description: "High risk of respiratory illness. Stay indoors with clean air and rest.",
				Recommendations: fixed(
					"Yoga: Meditation, Nadi Shodhana, and alternate nostril breathing.",
					"Food: Steam inhalation with tulsi/eucalyptus, eat warm soups and organic veggies.",
					"Health routine: Limit screen time, monitor oxygen levels if needed.",
				),
			},
			{
				Level:       6,
				Label:       "Severe",
				Max:         Unbounded,
				Range:       "401+",
				Color:       "black",
				Summary:     "Severe health impacts.",
				Description: "Severe health impacts. Even healthy people may experience symptoms. Emergency protocols should be followed.",
				Recommendations: fixed(
					"Yoga: Avoid physical strain. Just practice slow, conscious breathing indoors.",
					"Food: Consume herbal teas, jaggery, pomegranate, and avoid dairy temporarily.",
					"Health routine: Stay indoors, wear N95 if needed, visit a doctor if symptoms persist.",
				),
			},
		},
	}
}

func fiveTier() *Table {
	return &Table{
		Name:        PresetFiveTier,
		Description: "Five health-risk tiers with recommendations tailored to exposure, age, and condition. Used for weather model estimates.",
		Tiers: []Tier{
			{
				Level:       1,
				Label:       "Low Health Risk",
				Max:         50,
				Range:       "0-50",
				Color:       "green",
				Summary:     "Air quality is considered satisfactory, and air pollution poses little or no risk.",
				Description: "Air quality is good and poses little or no risk.",
				Recommendations: fixed(
					"Continue with normal outdoor activities",
					"No special precautions needed",
					"Enjoy the clean air",
				),
			},
			{
				Level:       2,
				Label:       "Moderate Health Risk",
				Max:         100,
				Range:       "51-100",
				Color:       "yellow",
				Summary:     "Air quality is acceptable; however, for some pollutants there may be a moderate health concern for a very small number of people.",
				Description: "Air quality is acceptable, but there may be moderate health concerns for sensitive individuals.",
				Recommendations: func(p *Profile) ([]string, string) {
					if p.hasCondition(ConditionRespiratory, ConditionCardiovascular, ConditionAllergies) || p.ageSensitive() {
						return []string{
							"Consider reducing prolonged outdoor exertion",
							"Monitor your symptoms",
							"Keep any necessary medication accessible",
						}, ""
					}
					return []string{
						"Most people can continue outdoor activities",
						"Watch for unusual symptoms like coughing or throat irritation",
						"Stay hydrated",
					}, ""
				},
			},
			{
				Level:       3,
				Label:       "Unhealthy for Sensitive Groups",
				Max:         150,
				Range:       "101-150",
				Color:       "orange",
				Summary:     "Members of sensitive groups may experience health effects. The general public is not likely to be affected.",
				Description: "Members of sensitive groups may experience health effects. The general public is less likely to be affected.",
				Recommendations: func(p *Profile) ([]string, string) {
					switch {
					case p.hasCondition(ConditionRespiratory, ConditionCardiovascular, ConditionAllergies):
						return []string{
							"Reduce prolonged or heavy outdoor exertion",
							"Take more breaks during outdoor activities",
							"Consider moving longer or more intense activities indoors",
							"Have relief medication readily available",
						}, ""
					case p.ageSensitive():
						return []string{
							"Limit prolonged outdoor activities",
							"Take frequent breaks when outdoors",
							"Monitor for respiratory symptoms",
						}, ""
					default:
						return []string{
							"Unusually sensitive people should consider reducing prolonged exertion",
							"Watch for symptoms such as coughing or shortness of breath",
							"Reduce prolonged outdoor activities if experiencing symptoms",
						}, ""
					}
				},
			},
			{
				Level:       4,
				Label:       "Unhealthy",
				Max:         200,
				Range:       "151-200",
				Color:       "red",
				Summary:     "Everyone may begin to experience health effects; members of sensitive groups may experience more serious health effects.",
				Description: "Everyone may begin to experience health effects. Sensitive groups may experience more serious effects.",
				Recommendations: func(p *Profile) ([]string, string) {
					var caveat string
					if p.exposedLongerThan(3) {
						caveat = " Extended exposure increases health risks."
					}
					if p.hasCondition(ConditionRespiratory, ConditionCardiovascular) {
						return []string{
							"Avoid prolonged outdoor exertion",
							"Consider rescheduling outdoor activities",
							"Stay indoors with air purification if possible",
							"Have emergency medication readily available",
							"Monitor symptoms closely",
						}, caveat
					}
					return []string{
						"Reduce prolonged or heavy outdoor exertion",
						"Take frequent breaks during outdoor activities",
						"Consider rescheduling strenuous outdoor activities",
						"Use a mask designed for air pollution when outdoors",
					}, caveat
				},
			},
			{
				Level:       5,
				Label:       "Very Unhealthy to Hazardous",
				Max:         Unbounded,
				Range:       "201+",
				Color:       "purple",
				Summary:     "Health warnings of emergency conditions. The entire population is more likely to be affected.",
				Description: "Health alert: everyone may experience more serious health effects.",
				Recommendations: func(p *Profile) ([]string, string) {
					var caveat string
					if p.exposedLongerThan(1) {
						caveat = " Even short-term exposure can lead to significant health effects."
					}
					recs := []string{
						"Avoid all outdoor physical activities",
						"Stay indoors with windows closed",
						"Use air purifiers if available",
						"Wear a proper mask if you must go outside",
						"Seek medical attention if experiencing difficulty breathing or other severe symptoms",
					}
					if p.hasCondition(ConditionRespiratory, ConditionCardiovascular) || p.ageSensitive() {
						recs = append(recs, "Consider temporarily relocating to an area with better air quality if possible")
					}
					return recs, caveat
				},
			},
		},
	}
}

func sixTierBrief() *Table {
	return &Table{
		Name:        PresetSixTierBrief,
		Description: "Six tiers with one-line advice. Superseded by six-tier.",
		Deprecated:  true,
		Tiers: []Tier{
			{
				Level:       1,
				Label:       "Good",
				Max:         50,
				Range:       "0-50",
				Color:       "green",
				Summary:     "Minimal impact on health.",
				Description: "Minimal impact on health.",
				Recommendations: fixed(
					"Maintain a healthy lifestyle with regular walks, hydration, and deep breathing exercises like Anulom-Vilom and Bhramari Pranayama.",
				),
			},
			{
				Level:       2,
				Label:       "Satisfactory",
				Max:         100,
				Range:       "51-100",
				Color:       "yellow",
				Summary:     "Minor discomfort for sensitive people.",
				Description: "Minor discomfort for sensitive people.",
				Recommendations: fixed(
					"Consider light yoga such as Tadasana and gentle walking outdoors.",
				),
			},
			{
				Level:       3,
				Label:       "Moderate",
				Max:         200,
				Range:       "101-200",
				Color:       "orange",
				Summary:     "People with lungs/heart problems may experience discomfort.",
				Description: "People with lungs/heart problems may experience discomfort.",
				Recommendations: fixed(
					"Do indoor yoga like Sukhasana, and avoid outdoor cardio.",
				),
			},
			{
				Level:       4,
				Label:       "Poor",
				Max:         300,
				Range:       "201-300",
				Color:       "red",
				Summary:     "Breathing discomfort with prolonged exposure.",
				Description: "Breathing discomfort with prolonged exposure.",
				Recommendations: fixed(
					"Stay indoors.",
					"Try breathing exercises and keep windows closed.",
				),
			},
			{
				Level:       5,
				Label:       "Very Poor",
				Max:         400,
				Range:       "301-400",
				Color:       "brown",
				Summary:     "May cause illness even for healthy people.",
				Description: "May cause illness even for healthy people.",
				Recommendations: fixed(
					"Do not exercise outdoors.",
					"Use air purifiers and do meditation and Pranayama indoors.",
				),
			},
			{
				Level:       6,
				Label:       "Severe",
				Max:         Unbounded,
				Range:       "401+",
				Color:       "black",
				Summary:     "Serious health effects.",
				Description: "Serious health effects.",
				Recommendations: fixed(
					"Avoid all physical activity outside.",
					"Drink turmeric milk, use steam therapy, and consult a doctor if breathing worsens.",
				),
			},
		},
	}
}
