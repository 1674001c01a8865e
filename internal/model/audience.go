// internal/model/audience.go
package model

type TagMode string

const (
	TagModeAll TagMode = "all"
	TagModeAny TagMode = "any"
)

type LeadLimitMode string

const (
	LimitAll    LeadLimitMode = "all"
	LimitCustom LeadLimitMode = "custom"
)

type LeadOrder string

const (
	OrderOldest LeadOrder = "oldest"
	OrderNewest LeadOrder = "newest"
)

// Filter is the declarative audience selection frozen on a job for audit.
// DateStart/DateEnd are inclusive day bounds (YYYY-MM-DD) on lead creation
// time; DateEnd is treated as end-of-day. Empty StageIDs means all stages of
// the selected funnels.
type Filter struct {
	FunnelIDs       []string      `json:"funnelIds"`
	StageIDs        []string      `json:"stageIds"`
	DateStart       string        `json:"dateStart"`
	DateEnd         string        `json:"dateEnd"`
	TagIDs          []string      `json:"tagIds"`
	TagMode         TagMode       `json:"tagMode"`
	LeadLimitMode   LeadLimitMode `json:"leadLimitMode"`
	CustomLeadLimit int           `json:"customLeadLimit"`
	LeadOrder       LeadOrder     `json:"leadOrder"`
}
