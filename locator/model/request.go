package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// CellRequest asks for the position of a single LTE cell.
type CellRequest struct {
	MCC      int   `json:"mcc" validate:"min=100,max=999"`
	MNC      int   `json:"mnc" validate:"min=0,max=999"`
	CellID   int64 `json:"cell" validate:"min=0,max=268435455"`
	AreaCode int   `json:"area" validate:"min=0,max=65535"`
}

func (r CellRequest) Domain() Domain { return DomainCell }

func (r CellRequest) KeyFields() []string {
	return []string{
		strconv.Itoa(r.MCC),
		strconv.Itoa(r.MNC),
		strconv.FormatInt(r.CellID, 10),
		strconv.Itoa(r.AreaCode),
	}
}

// AssistanceRequest asks for satellite assistance data near the serving cell.
// It is shared by the A-GNSS and A-GPS domains.
type AssistanceRequest struct {
	MCC      int   `json:"mcc" validate:"min=100,max=999"`
	MNC      int   `json:"mnc" validate:"min=0,max=999"`
	CellID   int64 `json:"cell" validate:"min=0,max=268435455"`
	AreaCode int   `json:"area" validate:"min=0,max=65535"`
	Types    []int `json:"types" validate:"required,min=1,dive,min=1,max=9"`
}

// SortedTypes returns the requested types ascending and without duplicates.
func (r AssistanceRequest) SortedTypes() []int {
	types := slices.Clone(r.Types)
	slices.Sort(types)
	return slices.Compact(types)
}

func (r AssistanceRequest) KeyFields() []string {
	types := r.SortedTypes()
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = strconv.Itoa(t)
	}
	return []string{
		strconv.Itoa(r.MCC),
		strconv.Itoa(r.MNC),
		strconv.FormatInt(r.CellID, 10),
		strconv.Itoa(r.AreaCode),
		strings.Join(parts, "_"),
	}
}

// AGNSSRequest is an assistance request for the A-GNSS domain.
type AGNSSRequest struct {
	AssistanceRequest
}

func (r AGNSSRequest) Domain() Domain { return DomainAGNSS }

// AGPSRequest is an assistance request for the legacy A-GPS domain.
type AGPSRequest struct {
	AssistanceRequest
}

func (r AGPSRequest) Domain() Domain { return DomainAGPS }

const (
	DefaultPredictionCount           = 42
	DefaultPredictionIntervalMinutes = 240
)

// PGPSRequest asks for predicted GPS assistance data. Every field is optional.
type PGPSRequest struct {
	PredictionCount           *int `json:"predictionCount,omitempty" validate:"omitempty,min=1,max=168"`
	PredictionIntervalMinutes *int `json:"predictionIntervalMinutes,omitempty" validate:"omitempty,min=120,max=480"`
	StartGPSDay               *int `json:"startGpsDay,omitempty" validate:"omitempty,min=0"`
	StartGPSTimeOfDaySeconds  *int `json:"startGpsTimeOfDaySeconds,omitempty" validate:"omitempty,min=0,max=86399"`
}

func (r PGPSRequest) Domain() Domain { return DomainPGPS }

// Count returns the prediction count or its default.
func (r PGPSRequest) Count() int { return valueOr(r.PredictionCount, DefaultPredictionCount) }

// Interval returns the prediction interval in minutes or its default.
func (r PGPSRequest) Interval() int {
	return valueOr(r.PredictionIntervalMinutes, DefaultPredictionIntervalMinutes)
}

// KeyFields renders unset start fields as -1 so they never collide with day or second zero.
func (r PGPSRequest) KeyFields() []string {
	return []string{
		strconv.Itoa(r.Count()),
		strconv.Itoa(r.Interval()),
		strconv.Itoa(valueOr(r.StartGPSDay, -1)),
		strconv.Itoa(valueOr(r.StartGPSTimeOfDaySeconds, -1)),
	}
}

// AccessPoint is a Wi-Fi access point observed by the device.
type AccessPoint struct {
	MAC  string `json:"macAddress" validate:"required,mac"`
	RSSI int    `json:"signalStrength" validate:"min=-128,max=0"`
}

// NeighborCell is an LTE neighbor measured by the device.
type NeighborCell struct {
	EARFCN int `json:"earfcn" validate:"min=0"`
	PCI    int `json:"pci" validate:"min=0,max=503"`
	RSRP   int `json:"rsrp"`
}

// LTESurvey is the serving cell and its neighbors.
type LTESurvey struct {
	MCC       int            `json:"mcc" validate:"min=100,max=999"`
	MNC       int            `json:"mnc" validate:"min=0,max=999"`
	CellID    int64          `json:"cell" validate:"min=0,max=268435455"`
	AreaCode  int            `json:"area" validate:"min=0,max=65535"`
	EARFCN    int            `json:"earfcn" validate:"min=0"`
	Neighbors []NeighborCell `json:"nmr,omitempty" validate:"dive"`
}

// SurveyRequest is a Wi-Fi and/or LTE network survey.
type SurveyRequest struct {
	LTE  *LTESurvey    `json:"lte,omitempty" validate:"required_without=WiFi"`
	WiFi []AccessPoint `json:"wifi,omitempty" validate:"required_without=LTE,dive"`
}

func (r SurveyRequest) Domain() Domain { return DomainSurvey }

// KeyFields is a single digest of the canonical survey. Access points are ordered by MAC
// so the same survey reported in a different order yields the same key.
func (r SurveyRequest) KeyFields() []string {
	canonical := SurveyRequest{LTE: r.LTE}
	if len(r.WiFi) > 0 {
		canonical.WiFi = slices.Clone(r.WiFi)
		for i := range canonical.WiFi {
			canonical.WiFi[i].MAC = strings.ToLower(canonical.WiFi[i].MAC)
		}
		slices.SortFunc(canonical.WiFi, func(a, b AccessPoint) int { return strings.Compare(a.MAC, b.MAC) })
	}
	// marshalling plain structs cannot fail
	body, _ := json.Marshal(canonical)
	sum := sha256.Sum256(body)
	return []string{hex.EncodeToString(sum[:8])}
}

func valueOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
