package web

import (
	"net/http"
	"time"

	"github.com/samber/mo"

	appLog "journalcal/internal/log"
	"journalcal/internal/recurrence"
)

type ruleRequest struct {
	Rule   string                    `json:"rule"`
	Delta  *recurrence.DeltaRequest  `json:"delta,omitempty"`
	Deltas []recurrence.DeltaRequest `json:"deltas,omitempty"`
	Locale string                    `json:"locale,omitempty"`
}

type ruleResponse struct {
	Rule      string               `json:"rule"`
	Recurring bool                 `json:"recurring"`
	Form      recurrence.FormState `json:"form"`
	Summary   string               `json:"summary"`
	Warnings  []string             `json:"warnings,omitempty"`
}

// locale picks the summary language: explicit value, then Accept-Language,
// then the configured default.
func (s *Server) locale(r *http.Request, explicit string) *recurrence.Locale {
	return recurrence.LookupLocale(explicit, r.Header.Get("Accept-Language"), s.cfg.Locale)
}

func describeRule(spec recurrence.Spec, loc *recurrence.Locale) ruleResponse {
	return ruleResponse{
		Rule:      recurrence.Serialize(spec),
		Recurring: spec.Recurring(),
		Form:      recurrence.Project(spec),
		Summary:   recurrence.Summarize(spec, loc),
	}
}

// handleRuleParse reads rule text into its canonical form and the form state
// an editor starts from.
//
// POST /api/rrule/parse {rule}
func (s *Server) handleRuleParse(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	spec, warns := recurrence.ParseWithWarnings(req.Rule)
	resp := describeRule(spec, s.locale(r, req.Locale))
	for _, warn := range warns {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRuleEdit applies form deltas to a rule.
//
// POST /api/rrule/edit {rule, delta} or {rule, deltas: [...]}
func (s *Server) handleRuleEdit(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reqs := req.Deltas
	if req.Delta != nil {
		reqs = append([]recurrence.DeltaRequest{*req.Delta}, reqs...)
	}
	if len(reqs) == 0 {
		writeError(w, http.StatusBadRequest, "no delta given")
		return
	}

	spec := recurrence.Parse(req.Rule)
	for _, dr := range reqs {
		d, err := recurrence.DecodeDelta(dr)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		spec = recurrence.Reduce(spec, d)
	}
	writeJSON(w, http.StatusOK, describeRule(spec, s.locale(r, req.Locale)))
}

// handleRuleSummary renders the human-readable summary of a rule.
//
// GET /api/rrule/summary?rule=FREQ=WEEKLY;BYDAY=MO&locale=ko
func (s *Server) handleRuleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.locale(r, q.Get("locale"))
	spec := recurrence.Parse(q.Get("rule"))

	writeJSON(w, http.StatusOK, map[string]any{
		"rule":    recurrence.Serialize(spec),
		"summary": recurrence.Summarize(spec, loc),
		"locale":  loc.Tag.String(),
	})
}

type expandRequest struct {
	Rule  string     `json:"rule"`
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
	From  time.Time  `json:"from"`
	To    time.Time  `json:"to"`
	Max   int        `json:"max,omitempty"`
}

type expandResponse struct {
	Rule        string                  `json:"rule"`
	Occurrences []recurrence.Occurrence `json:"occurrences"`
	Truncated   bool                    `json:"truncated"`
	Error       string                  `json:"error,omitempty"`
}

// handleRuleExpand previews the occurrences of a rule for an anchor and a
// window. An expansion failure yields no occurrences plus an error message.
//
// POST /api/rrule/expand {rule, start, end?, from, to, max?}
func (s *Server) handleRuleExpand(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Start.IsZero() {
		writeError(w, http.StatusBadRequest, "start is required")
		return
	}
	if req.From.IsZero() || req.To.IsZero() {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	if req.To.Before(req.From) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}

	limit := s.cfg.MaxOccurrencesPerEvent
	if req.Max > 0 && req.Max < limit {
		limit = req.Max
	}

	end := mo.None[time.Time]()
	if req.End != nil {
		end = mo.Some(*req.End)
	}

	spec := recurrence.Parse(req.Rule)
	exp := recurrence.NewExpander(limit).Run(spec, req.Start, end, req.From, req.To)

	resp := expandResponse{
		Rule:        recurrence.Serialize(spec),
		Occurrences: exp.Occurrences,
		Truncated:   exp.Truncated,
	}
	if resp.Occurrences == nil {
		resp.Occurrences = []recurrence.Occurrence{}
	}
	if exp.Err != nil {
		appLog.Error("api rrule expand failed", exp.Err, "rule", req.Rule)
		resp.Error = exp.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
