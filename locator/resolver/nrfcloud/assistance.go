package nrfcloud

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"encore.app/locator/model"
	"encore.app/locator/resolver"
)

const (
	agnssPath = "/v1/location/agnss"
	agpsPath  = "/v1/location/agps"

	// typeEphemerides is too large to share a response with the other A-GPS types.
	typeEphemerides = 2
)

type agnssRequest struct {
	MCC   int   `json:"mcc"`
	MNC   int   `json:"mnc"`
	ECI   int64 `json:"eci"`
	TAC   int   `json:"tac"`
	Types []int `json:"types"`
}

// AGNSSResolver fetches A-GNSS assistance data in a single request.
type AGNSSResolver struct {
	client *Client
}

func (r *AGNSSResolver) Resolve(ctx context.Context, req model.AGNSSRequest) (resolver.Result[model.AssistanceData], error) {
	types := req.SortedTypes()
	data, err := r.client.call(ctx, "agnss", http.MethodPost, agnssPath, nil, agnssRequest{
		MCC:   req.MCC,
		MNC:   req.MNC,
		ECI:   req.CellID,
		TAC:   req.AreaCode,
		Types: types,
	})
	if err != nil {
		if errors.Is(err, errNoData) {
			return resolver.NoData[model.AssistanceData](), nil
		}
		return resolver.Result[model.AssistanceData]{}, err
	}
	return resolver.Found(model.AssistanceData{Types: types, Chunks: [][]byte{data}}), nil
}

// AGPSResolver fetches A-GPS assistance data. Ephemerides are requested separately
// from the other types; the request resolves only if every sub-request does.
type AGPSResolver struct {
	client *Client
}

// splitTypes partitions types into the groups requested independently, in request order.
func splitTypes(types []int) [][]int {
	var rest []int
	hasEphemerides := false
	for _, t := range types {
		if t == typeEphemerides {
			hasEphemerides = true
			continue
		}
		rest = append(rest, t)
	}

	var groups [][]int
	if len(rest) > 0 {
		groups = append(groups, rest)
	}
	if hasEphemerides {
		groups = append(groups, []int{typeEphemerides})
	}
	return groups
}

func (r *AGPSResolver) Resolve(ctx context.Context, req model.AGPSRequest) (resolver.Result[model.AssistanceData], error) {
	types := req.SortedTypes()
	groups := splitTypes(types)
	chunks := make([][]byte, len(groups))
	missing := make([]bool, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			data, err := r.client.call(gctx, "agps", http.MethodGet, agpsPath, agpsQuery(req, group), nil)
			if err != nil {
				if errors.Is(err, errNoData) {
					missing[i] = true
					return nil
				}
				return err
			}
			chunks[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resolver.Result[model.AssistanceData]{}, err
	}

	// a partial answer is never cached
	if slices.Contains(missing, true) {
		return resolver.NoData[model.AssistanceData](), nil
	}
	return resolver.Found(model.AssistanceData{Types: types, Chunks: chunks}), nil
}

func agpsQuery(req model.AGPSRequest, types []int) url.Values {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = strconv.Itoa(t)
	}
	q := url.Values{}
	q.Set("mcc", strconv.Itoa(req.MCC))
	q.Set("mnc", strconv.Itoa(req.MNC))
	q.Set("eci", strconv.FormatInt(req.CellID, 10))
	q.Set("tac", strconv.Itoa(req.AreaCode))
	q.Set("requestType", "custom")
	q.Set("customTypes", strings.Join(parts, ","))
	return q
}
