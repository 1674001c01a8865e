// internal/service/audience.go
package service

import (
	"sort"
	"strings"
	"time"

	"github.com/funilzap/crm-backend/internal/model"
	"github.com/funilzap/crm-backend/internal/repository"
)

// AudienceService turns a declarative filter into a deduplicated, ordered
// list of (lead, phones) targets.
type AudienceService struct {
	LeadRepo repository.LeadRepositoryInterface
	TagRepo  repository.TagRepositoryInterface
}

// AudienceResult is the resolved audience. TotalLeads counts every retained
// lead, including leads without a usable phone; those produce no target and
// no items.
type AudienceResult struct {
	TotalLeads int            `json:"totalLeads"`
	TotalItems int            `json:"totalItems"`
	Targets    []model.Target `json:"targets"`
}

func (s *AudienceService) Resolve(filter model.Filter) (*AudienceResult, error) {
	// Load leads for the selected funnels, deduplicated by lead id. A lead
	// reached through two funnels counts once.
	seen := map[string]bool{}
	leads := []model.Lead{}
	for _, fid := range filter.FunnelIDs {
		funnelLeads, err := s.LeadRepo.ListByFunnel(fid)
		if err != nil {
			return nil, err
		}
		for _, l := range funnelLeads {
			if seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			leads = append(leads, l)
		}
	}

	tagNamesByID := map[string]string{}
	if len(filter.TagIDs) > 0 {
		tags, err := s.TagRepo.ListAll()
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			tagNamesByID[t.ID] = t.Name
		}
	}

	filtered := leads[:0]
	for _, l := range leads {
		if matchesFilter(l, filter, tagNamesByID) {
			filtered = append(filtered, l)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	if filter.LeadOrder == model.OrderNewest {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	if filter.LeadLimitMode == model.LimitCustom {
		n := filter.CustomLeadLimit
		if n < 0 {
			n = 0
		}
		if n > len(filtered) {
			n = len(filtered)
		}
		filtered = filtered[:n]
	}

	res := &AudienceResult{TotalLeads: len(filtered), Targets: []model.Target{}}
	for _, l := range filtered {
		phones := ExtractUniquePhones(l)
		if len(phones) == 0 {
			continue
		}
		res.Targets = append(res.Targets, model.Target{LeadID: l.ID, Phones: phones})
		res.TotalItems += len(phones)
	}
	return res, nil
}

func matchesFilter(l model.Lead, filter model.Filter, tagNamesByID map[string]string) bool {
	if len(filter.StageIDs) > 0 && !contains(filter.StageIDs, l.Status) {
		return false
	}

	if filter.DateStart != "" {
		if start, err := time.Parse("2006-01-02", filter.DateStart); err == nil {
			if l.CreatedAt.Before(start) {
				return false
			}
		}
	}
	if filter.DateEnd != "" {
		if end, err := time.Parse("2006-01-02", filter.DateEnd); err == nil {
			// Inclusive day bound: anything before the next midnight passes.
			if !l.CreatedAt.Before(end.AddDate(0, 0, 1)) {
				return false
			}
		}
	}

	if len(filter.TagIDs) > 0 {
		// A lead's stored tags may hold tag ids or tag names; match against
		// both forms.
		leadTags := map[string]bool{}
		for _, t := range l.Tags {
			leadTags[t] = true
			if name, ok := tagNamesByID[t]; ok {
				leadTags[name] = true
			}
		}

		if filter.TagMode == model.TagModeAll {
			for _, want := range filter.TagIDs {
				if !leadTags[want] {
					return false
				}
			}
		} else {
			ok := false
			for _, want := range filter.TagIDs {
				if leadTags[want] {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
	}

	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// NormalizePhone reduces raw input to digits and maps it to a +55 E.164-like
// number. Local 10/11 digit numbers get the country code prefixed; longer
// numbers must already carry it. Returns "" when the input is unusable.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) < 10:
		return ""
	case len(d) == 10 || len(d) == 11:
		return "+55" + d
	case len(d) >= 12 && len(d) <= 15:
		if strings.HasPrefix(d, "55") {
			return "+" + d
		}
		return ""
	default:
		return ""
	}
}

// ExtractUniquePhones collects the lead's primary phone and every associated
// person's phone, normalized and deduplicated in order of appearance.
func ExtractUniquePhones(l model.Lead) []string {
	out := []string{}
	seen := map[string]bool{}

	push := func(raw string) {
		norm := NormalizePhone(raw)
		if norm == "" || seen[norm] {
			return
		}
		seen[norm] = true
		out = append(out, norm)
	}

	push(l.Phone)
	for _, p := range l.People {
		push(p.Phone)
	}
	return out
}
