// Package redact masks protected health information in free text before it
// is shown on a report.
package redact

import (
	"regexp"
	"sort"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

type Redactor struct {
	rules []compiledRule
}

func New(cfg Rules) (*Redactor, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Redactor{rules: compiled}, nil
}

// Types reports which PHI types occur in text, sorted.
func (r *Redactor) Types(text string) []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, cr := range r.rules {
		if cr.re.MatchString(text) {
			seen[cr.rule.Type] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (r *Redactor) Text(text string) string {
	if r == nil {
		return text
	}
	for _, cr := range r.rules {
		text = cr.re.ReplaceAllString(text, cr.rule.Mask)
	}
	return text
}

// Report returns a copy of report with the system log and trace outputs
// masked. The trace is copied; order is preserved.
func (r *Redactor) Report(report models.DetailedReport) models.DetailedReport {
	if r == nil {
		return report
	}
	out := report
	out.SystemLog = r.Text(report.SystemLog)
	if report.Trace != nil {
		out.Trace = make([]models.TraceStep, len(report.Trace))
		for i, step := range report.Trace {
			step.Output = r.Text(step.Output)
			out.Trace[i] = step
		}
	}
	return out
}
