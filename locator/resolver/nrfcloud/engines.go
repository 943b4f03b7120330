package nrfcloud

import (
	"encore.app/locator/model"
	"encore.app/locator/resolver"
)

// Engines returns one engine per domain, all sharing this client's token and rate limit.
func (c *Client) Engines() []resolver.Engine {
	return []resolver.Engine{
		resolver.NewAdapter[model.AGNSSRequest, model.AssistanceData](model.DomainAGNSS, &AGNSSResolver{client: c}),
		resolver.NewAdapter[model.AGPSRequest, model.AssistanceData](model.DomainAGPS, &AGPSResolver{client: c}),
		resolver.NewAdapter[model.PGPSRequest, model.PredictionSet](model.DomainPGPS, &PGPSResolver{client: c}),
		resolver.NewAdapter[model.CellRequest, model.Location](model.DomainCell, &CellResolver{client: c}),
		resolver.NewAdapter[model.SurveyRequest, model.Location](model.DomainSurvey, &SurveyResolver{client: c}),
	}
}
