package mapper

import (
	"time"

	"github.com/personakit/personakit/internal/rules"
)

// DailyWorkOptimizer is the built-in mapper seeded on first start. It turns
// work-habit traits into daily planning guidance.
func DailyWorkOptimizer() Configuration {
	return Configuration{
		MapperID:       "daily_work_optimizer",
		Name:           "Daily Work Optimizer",
		Description:    "Suggests focus blocks, breaks, and meeting buffers from observed work habits.",
		RequiredTraits: []string{"work.focus_duration"},
		PersonaTTL:     24 * time.Hour,
		Feedback:       DefaultFeedbackSettings(),
		CreatedBy:      "system",
		Rules: []rules.Rule{
			{
				ID:          "focus_block_length",
				Description: "Recommend focus blocks sized to the observed attention span.",
				Weight:      1.0,
				Condition: rules.Condition{
					Type:     rules.CondTrait,
					Path:     "work.focus_duration",
					Operator: rules.OpExists,
				},
				Actions: []rules.Action{{
					Type:     "suggest",
					Template: "focus_block",
					Params: map[string]rules.ParamSource{
						"hours": {FromTrait: "work.focus_duration", Transform: "minutes_to_hours", Default: 1.0},
					},
				}},
			},
			{
				ID:          "protect_peak_hours",
				Description: "Keep meetings out of the most productive hours.",
				Weight:      1.2,
				Condition: rules.Condition{
					Type:     rules.CondTrait,
					Path:     "work.peak_hours",
					Operator: rules.OpExists,
				},
				Actions: []rules.Action{{
					Type:     "suggest",
					Template: "protect_peak",
					Params: map[string]rules.ParamSource{
						"window": {FromTrait: "work.peak_hours", Default: "mornings"},
					},
				}},
			},
			{
				ID:          "low_energy_break",
				Description: "Suggest a restorative break when energy is low.",
				Weight:      1.1,
				Condition: rules.Condition{
					Type: rules.CondAll,
					Conditions: []rules.Condition{
						{Type: rules.CondTrait, Path: "current_state.energy_level", Operator: rules.OpEquals, Value: "low"},
						{Type: rules.CondContext, Key: "time_of_day", Operator: rules.OpNotEquals, Value: "evening"},
					},
				},
				Actions: []rules.Action{{
					Type:     "suggest",
					Template: "take_break",
				}},
			},
			{
				ID:          "meeting_buffer",
				Description: "Add recovery time after meetings for people who need it.",
				Weight:      0.9,
				Condition: rules.Condition{
					Type:     rules.CondTrait,
					Path:     "work.meeting_recovery_time",
					Operator: rules.OpGreater,
					Value:    15,
				},
				Actions: []rules.Action{{
					Type:     "suggest",
					Template: "meeting_buffer",
					Params: map[string]rules.ParamSource{
						"minutes": {FromTrait: "work.meeting_recovery_time", Default: 30.0},
					},
				}},
			},
			{
				ID:          "batch_interruptions",
				Description: "Batch shallow work when context switching is expensive.",
				Weight:      0.8,
				Condition: rules.Condition{
					Type: rules.CondAny,
					Conditions: []rules.Condition{
						{Type: rules.CondTrait, Path: "work.task_switching_cost", Operator: rules.OpEquals, Value: "high"},
						{Type: rules.CondTrait, Path: "work.task_switching_cost", Operator: rules.OpEquals, Value: "medium"},
					},
				},
				Actions: []rules.Action{{
					Type:     "suggest",
					Template: "batch_shallow",
				}},
			},
		},
		Templates: map[string]string{
			"focus_block":    "Block {hours} hours for deep focus work.",
			"protect_peak":   "Keep {window} free of meetings; that is your most productive window.",
			"take_break":     "Energy is low. Take a short walk before the next task.",
			"meeting_buffer": "Leave {minutes} minutes of buffer after each meeting.",
			"batch_shallow":  "Batch email and chat into fixed slots to cut context switching.",
		},
	}
}
