// Package alerts implements the rule evaluation engine and webhook delivery
// for tempslope alerting. Rules are evaluated against each ingested sensor
// snapshot; transitions (firing, resolved) are delivered to Slack, Teams or
// generic HTTP webhooks.
package alerts
