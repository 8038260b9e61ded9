package config

// Default returns the baseline configuration before file values are applied.
func Default() Config {
	return Config{
		Name: "curator",
		Workflow: Workflow{
			PollIntervalSeconds: 30,
			CleanIntervalHours:  24,
			ErrorBudget:         5,
			DiscardUnmatched:    true,
			QuarantineInvalid:   true,
		},
		Retention: Retention{
			MaxAgeHours:      72,
			MaxTrashVariants: 100,
		},
		Overwrite: Overwrite{
			Store:   false,
			Publish: true,
			Trash:   false,
		},
		Values: Values{
			NullSentinels: []string{"NA", "N/A", "null", "-"},
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}
