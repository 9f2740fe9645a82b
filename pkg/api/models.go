package api

import (
	"image"

	"github.com/paulmach/orb"

	"roadnet/pkg/graph"
	"roadnet/pkg/network"
	"roadnet/pkg/routing"
	"roadnet/pkg/sensors"
)

// RouteRequest is the JSON body for POST /api/v1/route.
type RouteRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	Gates    []sensors.GateName `json:"gates"`
	Steps    int                `json:"steps"`
	Geometry orb.LineString     `json:"geometry"`
}

// TrajectoryRequest is the JSON body for POST /api/v1/trajectory.
type TrajectoryRequest struct {
	Gates []string `json:"gates"`
}

// TrajectoryResponse is the drawn path of one trip.
type TrajectoryResponse struct {
	Gates    []sensors.GateName `json:"gates"`
	Legs     []routing.Leg      `json:"legs"`
	Geometry orb.LineString     `json:"geometry"`
}

// FlowsRequest is the JSON body for POST /api/v1/flows.
type FlowsRequest struct {
	Trips [][]string `json:"trips"`
}

// FlowJSON is one edge count, busiest first.
type FlowJSON struct {
	From  sensors.GateName `json:"from"`
	To    sensors.GateName `json:"to"`
	Count int              `json:"count"`
}

// FlowsResponse is the JSON response for POST /api/v1/flows.
type FlowsResponse struct {
	Trips int        `json:"trips"`
	Flows []FlowJSON `json:"flows"`
}

// NetworkResponse is the JSON response for GET /api/v1/network. Map keys of
// paths are "From--To".
type NetworkResponse struct {
	Width       int                              `json:"width"`
	Height      int                              `json:"height"`
	Adjacency   graph.Adjacency                  `json:"adjacency"`
	Paths       map[graph.PathKey][][2]int       `json:"paths"`
	SmoothPaths map[graph.PathKey]orb.LineString `json:"smoothPaths"`
}

// PathResponse is the JSON response for GET /api/v1/paths/{from}/{to}.
type PathResponse struct {
	From   sensors.GateName `json:"from"`
	To     sensors.GateName `json:"to"`
	Steps  int              `json:"steps"`
	Raw    [][2]int         `json:"raw"`
	Smooth orb.LineString   `json:"smooth"`
}

// SnapResponse is the JSON response for GET /api/v1/snap.
type SnapResponse struct {
	From     sensors.GateName `json:"from"`
	To       sensors.GateName `json:"to"`
	Segment  int              `json:"segment"`
	Ratio    float64          `json:"ratio"`
	Distance float64          `json:"distance"`
	Point    orb.Point        `json:"point"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	network.Stats
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Fingerprint uint32 `json:"fingerprint"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

func pixelsJSON(path []image.Point) [][2]int {
	out := make([][2]int, len(path))
	for i, p := range path {
		out[i] = [2]int{p.X, p.Y}
	}
	return out
}
