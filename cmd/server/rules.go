package main

import (
	"notifyhub/internal/config"
	"notifyhub/internal/domain/notification"
)

// routingRules overlays configured rules on the defaults. A channel named in
// config replaces its default rule entirely.
func routingRules(overrides map[string]config.RuleConfig) map[notification.Channel]notification.Rule {
	out := notification.DefaultRules()
	for name, rc := range overrides {
		r := notification.Rule{
			Enabled:                  rc.Enabled,
			RequiredKeywords:         rc.RequiredKeywords,
			Keywords:                 rc.Keywords,
			MinImportanceForKeywords: notification.Importance(rc.MinImportanceForKeywords),
			MinDaysThreshold:         rc.MinDaysThreshold,
			StrictDaysThreshold:      rc.StrictDaysThreshold,
		}
		for _, imp := range rc.Importance {
			r.Importance = append(r.Importance, notification.Importance(imp))
		}
		for _, t := range rc.Types {
			r.Types = append(r.Types, notification.Type(t))
		}
		out[notification.Channel(name)] = r
	}
	// NewRulesManager validates channel names and enum values.
	return out
}
