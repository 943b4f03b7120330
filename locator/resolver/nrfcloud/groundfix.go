package nrfcloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"encore.app/locator/model"
	"encore.app/locator/resolver"
)

const groundFixPath = "/v1/location/ground-fix"

type lteCell struct {
	MCC    int            `json:"mcc"`
	MNC    int            `json:"mnc"`
	ECI    int64          `json:"eci"`
	TAC    int            `json:"tac"`
	EARFCN *int           `json:"earfcn,omitempty"`
	NMR    []neighborCell `json:"nmr,omitempty"`
}

type neighborCell struct {
	EARFCN int `json:"earfcn"`
	PCI    int `json:"pci"`
	RSRP   int `json:"rsrp"`
}

type wifiAccessPoint struct {
	MACAddress     string `json:"macAddress"`
	SignalStrength int    `json:"signalStrength"`
}

type wifiSurvey struct {
	AccessPoints []wifiAccessPoint `json:"accessPoints"`
}

type groundFixRequest struct {
	LTE  []lteCell  `json:"lte,omitempty"`
	WiFi *wifiSurvey `json:"wifi,omitempty"`
}

type groundFixResponse struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Uncertainty   float64 `json:"uncertainty"`
	FulfilledWith string  `json:"fulfilledWith"`
}

// groundFix posts body and maps the answer to a location.
func (c *Client) groundFix(ctx context.Context, op string, body groundFixRequest) (resolver.Result[model.Location], error) {
	data, err := c.call(ctx, op, http.MethodPost, groundFixPath, nil, body)
	if err != nil {
		if errors.Is(err, errNoData) {
			return resolver.NoData[model.Location](), nil
		}
		return resolver.Result[model.Location]{}, err
	}

	var res groundFixResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return resolver.Result[model.Location]{}, &resolver.InfrastructureError{Op: op, Kind: resolver.KindUpstream, Err: err}
	}
	return resolver.Found(model.Location{
		Lat:      res.Lat,
		Lng:      res.Lon,
		Accuracy: res.Uncertainty,
		Source:   res.FulfilledWith,
	}), nil
}

// CellResolver locates a single serving cell.
type CellResolver struct {
	client *Client
}

func (r *CellResolver) Resolve(ctx context.Context, req model.CellRequest) (resolver.Result[model.Location], error) {
	return r.client.groundFix(ctx, "cell", groundFixRequest{
		LTE: []lteCell{{MCC: req.MCC, MNC: req.MNC, ECI: req.CellID, TAC: req.AreaCode}},
	})
}

// SurveyResolver locates a Wi-Fi and/or LTE network survey.
type SurveyResolver struct {
	client *Client
}

func (r *SurveyResolver) Resolve(ctx context.Context, req model.SurveyRequest) (resolver.Result[model.Location], error) {
	var body groundFixRequest
	if req.LTE != nil {
		earfcn := req.LTE.EARFCN
		cell := lteCell{
			MCC:    req.LTE.MCC,
			MNC:    req.LTE.MNC,
			ECI:    req.LTE.CellID,
			TAC:    req.LTE.AreaCode,
			EARFCN: &earfcn,
		}
		for _, n := range req.LTE.Neighbors {
			cell.NMR = append(cell.NMR, neighborCell{EARFCN: n.EARFCN, PCI: n.PCI, RSRP: n.RSRP})
		}
		body.LTE = []lteCell{cell}
	}
	if len(req.WiFi) > 0 {
		body.WiFi = &wifiSurvey{AccessPoints: make([]wifiAccessPoint, 0, len(req.WiFi))}
		for _, ap := range req.WiFi {
			body.WiFi.AccessPoints = append(body.WiFi.AccessPoints, wifiAccessPoint{
				MACAddress:     ap.MAC,
				SignalStrength: ap.RSSI,
			})
		}
	}
	return r.client.groundFix(ctx, "survey", body)
}
