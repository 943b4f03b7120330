package nrfcloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"encore.app/locator/model"
	"encore.app/locator/resolver"
)

const pgpsPath = "/v1/location/pgps"

// PGPSResolver asks where the predicted GPS data for a request can be downloaded.
type PGPSResolver struct {
	client *Client
}

func (r *PGPSResolver) Resolve(ctx context.Context, req model.PGPSRequest) (resolver.Result[model.PredictionSet], error) {
	q := url.Values{}
	q.Set("predictionCount", strconv.Itoa(req.Count()))
	q.Set("predictionIntervalMinutes", strconv.Itoa(req.Interval()))
	if req.StartGPSDay != nil {
		q.Set("startGpsDay", strconv.Itoa(*req.StartGPSDay))
	}
	if req.StartGPSTimeOfDaySeconds != nil {
		q.Set("startGpsTimeOfDaySeconds", strconv.Itoa(*req.StartGPSTimeOfDaySeconds))
	}

	data, err := r.client.call(ctx, "pgps", http.MethodGet, pgpsPath, q, nil)
	if err != nil {
		if errors.Is(err, errNoData) {
			return resolver.NoData[model.PredictionSet](), nil
		}
		return resolver.Result[model.PredictionSet]{}, err
	}

	var set model.PredictionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return resolver.Result[model.PredictionSet]{}, &resolver.InfrastructureError{Op: "pgps", Kind: resolver.KindUpstream, Err: err}
	}
	if set.Host == "" || set.Path == "" {
		return resolver.NoData[model.PredictionSet](), nil
	}
	return resolver.Found(set), nil
}
