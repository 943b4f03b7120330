package model

// Domain identifies one request family served by the resolution engine.
type Domain string

const (
	DomainAGNSS  Domain = "agnss"
	DomainAGPS   Domain = "agps"
	DomainPGPS   Domain = "pgps"
	DomainCell   Domain = "cell"
	DomainSurvey Domain = "survey"
)

// Domains lists every supported domain in a fixed order.
var Domains = []Domain{DomainAGNSS, DomainAGPS, DomainPGPS, DomainCell, DomainSurvey}

func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// Request is implemented by every domain request value.
// KeyFields returns the identifying fields in the order they appear in a cache key.
// Optional fields must be rendered with a fixed sentinel, never omitted.
type Request interface {
	Domain() Domain
	KeyFields() []string
}
