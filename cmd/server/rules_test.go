package main

import (
	"testing"

	"notifyhub/internal/config"
	"notifyhub/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingRules_DefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, notification.DefaultRules(), routingRules(nil))
}

func TestRoutingRules_OverrideReplacesChannel(t *testing.T) {
	rules := routingRules(map[string]config.RuleConfig{
		"email": {Enabled: true, Importance: []string{"high"}, Types: []string{"payment"}},
	})

	email := rules[notification.ChannelEmail]
	assert.True(t, email.Enabled)
	assert.Equal(t, []notification.Importance{notification.ImportanceHigh}, email.Importance)
	assert.Equal(t, []notification.Type{notification.TypePayment}, email.Types)
	assert.Equal(t, notification.DefaultRules()[notification.ChannelSMS], rules[notification.ChannelSMS])

	m, err := notification.NewRulesManager(rules)
	require.NoError(t, err)
	assert.True(t, m.ShouldSend(notification.ChannelEmail, notification.TypePayment, notification.ImportanceHigh, "t", "c"))
}

func TestRoutingRules_UnknownChannelRejectedByManager(t *testing.T) {
	_, err := notification.NewRulesManager(routingRules(map[string]config.RuleConfig{"fax": {Enabled: true}}))
	assert.Error(t, err)
}
