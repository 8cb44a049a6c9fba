// Package kfilter constructs Klaviyo JSON:API filter expressions.
package kfilter

import (
	"fmt"
	"strings"
	"time"
)

// Builder constructs safe Klaviyo filter strings.
// All methods are pure functions with no side effects.
// Zero value is ready to use.
type Builder struct{}

// CampaignParams defines inputs for campaign listing filters.
type CampaignParams struct {
	Channel string
	Start   time.Time
	End     time.Time
}

// BuildCampaignFilter returns a filter expression selecting campaigns by
// channel and scheduled-send window. Channel defaults to "email".
func (b Builder) BuildCampaignFilter(p CampaignParams) string {
	channel := p.Channel
	if channel == "" {
		channel = "email"
	}

	parts := []string{b.Equals("messages.channel", channel)}
	if !p.Start.IsZero() {
		parts = append(parts, b.GreaterOrEqual("scheduled_at", p.Start))
	}
	if !p.End.IsZero() {
		parts = append(parts, b.LessThan("scheduled_at", p.End))
	}

	return b.And(parts...)
}

// Equals returns an equals(field,'value') expression with quotes escaped.
func (b Builder) Equals(field, value string) string {
	return fmt.Sprintf("equals(%s,'%s')", field, strings.ReplaceAll(value, "'", `\'`))
}

// Any returns an any(field,['a','b']) expression.
func (b Builder) Any(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("'%s'", strings.ReplaceAll(v, "'", `\'`))
	}
	return fmt.Sprintf("any(%s,[%s])", field, strings.Join(quoted, ","))
}

// GreaterOrEqual returns a greater-or-equal(field,timestamp) expression.
func (b Builder) GreaterOrEqual(field string, t time.Time) string {
	return fmt.Sprintf("greater-or-equal(%s,%s)", field, t.UTC().Format(time.RFC3339))
}

// LessThan returns a less-than(field,timestamp) expression.
func (b Builder) LessThan(field string, t time.Time) string {
	return fmt.Sprintf("less-than(%s,%s)", field, t.UTC().Format(time.RFC3339))
}

// And joins expressions with commas, which Klaviyo treats as conjunction.
// Empty expressions are skipped; a single expression is returned unwrapped.
func (b Builder) And(exprs ...string) string {
	nonEmpty := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e != "" {
			nonEmpty = append(nonEmpty, e)
		}
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0]
	}
	return strings.Join(nonEmpty, ",")
}
