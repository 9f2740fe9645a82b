package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"

	"roadnet/pkg/export"
	"roadnet/pkg/geo"
	"roadnet/pkg/graph"
	"roadnet/pkg/network"
	"roadnet/pkg/routing"
	"roadnet/pkg/sensors"
)

const (
	maxSmallBody = 4 << 10
	maxFlowsBody = 1 << 20
	maxTripGates = 1024
)

// Service is what the handlers need from the routing layer. *routing.Planner
// implements it.
type Service interface {
	routing.Router
	Network() *network.Network
	Trajectory(ctx context.Context, gates []sensors.GateName) (*routing.Trajectory, error)
	Snap(pt orb.Point, maxDist float64) (routing.SnapResult, error)
}

// Options configures the handlers.
type Options struct {
	Georef       geo.Georef
	SnapDistance float64 // pixels; <= 0 means routing.DefaultSnapDistance
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	svc     Service
	opts    Options
	stats   StatsResponse
	geojson []byte
}

// NewHandlers creates handlers for svc. The network is read-only, so stats
// and the GeoJSON document are computed once here.
func NewHandlers(svc Service, opts Options) *Handlers {
	if opts.SnapDistance <= 0 {
		opts.SnapDistance = routing.DefaultSnapDistance
	}
	n := svc.Network()
	h := &Handlers{
		svc:  svc,
		opts: opts,
		stats: StatsResponse{
			Stats:       n.Stats(),
			Width:       n.Width,
			Height:      n.Height,
			Fingerprint: n.Fingerprint,
		},
	}
	data, err := export.GeoJSON(n, opts.Georef).MarshalJSON()
	if err != nil {
		log.Printf("Warning: geojson: %v", err)
	}
	h.geojson = data
	return h
}

// Stats returns the network summary served by /api/v1/stats.
func (h *Handlers) Stats() StatsResponse { return h.stats }

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSmallBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	from, err := sensors.ParseGate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_gate", "from")
		return
	}
	to, err := sensors.ParseGate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_gate", "to")
		return
	}

	result, err := h.svc.Route(r.Context(), from, to)
	if err != nil {
		writeRoutingError(w, err)
		return
	}

	writeJSON(w, RouteResponse{
		Gates:    result.Gates,
		Steps:    result.Steps,
		Geometry: result.Geometry,
	})
}

// HandleTrajectory handles POST /api/v1/trajectory.
func (h *Handlers) HandleTrajectory(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req TrajectoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSmallBody*4)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}
	if len(req.Gates) == 0 || len(req.Gates) > maxTripGates {
		writeError(w, http.StatusBadRequest, "invalid_request", "gates")
		return
	}
	gates, err := parseGates(req.Gates)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_gate", "gates")
		return
	}

	tr, err := h.svc.Trajectory(r.Context(), gates)
	if err != nil {
		writeRoutingError(w, err)
		return
	}
	writeJSON(w, TrajectoryResponse{Gates: tr.Gates, Legs: tr.Legs, Geometry: tr.Geometry})
}

// HandleFlows handles POST /api/v1/flows.
func (h *Handlers) HandleFlows(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req FlowsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFlowsBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	trips := make([][]sensors.GateName, len(req.Trips))
	for i, trip := range req.Trips {
		gates, err := parseGates(trip)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_gate", "trips")
			return
		}
		trips[i] = gates
	}

	ranked := routing.RankFlows(routing.EdgeFlows(trips))
	resp := FlowsResponse{Trips: len(trips), Flows: make([]FlowJSON, len(ranked))}
	for i, f := range ranked {
		resp.Flows[i] = FlowJSON{From: f.Edge.From, To: f.Edge.To, Count: f.Count}
	}
	writeJSON(w, resp)
}

// HandleNetwork handles GET /api/v1/network.
func (h *Handlers) HandleNetwork(w http.ResponseWriter, r *http.Request) {
	n := h.svc.Network()
	resp := NetworkResponse{
		Width:       n.Width,
		Height:      n.Height,
		Adjacency:   n.Adjacency,
		Paths:       make(map[graph.PathKey][][2]int, len(n.Paths)),
		SmoothPaths: n.SmoothPaths,
	}
	for k, p := range n.Paths {
		resp.Paths[k] = pixelsJSON(p)
	}
	writeJSON(w, resp)
}

// HandleGeoJSON handles GET /api/v1/network.geojson.
func (h *Handlers) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	if h.geojson == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(h.geojson)
}

// HandlePlot handles GET /api/v1/network.png.
func (h *Handlers) HandlePlot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := export.WritePNG(w, h.svc.Network(), nil, export.DefaultPlotOptions()); err != nil {
		log.Printf("plot: %v", err)
	}
}

// HandlePath handles GET /api/v1/paths/{from}/{to}.
func (h *Handlers) HandlePath(w http.ResponseWriter, r *http.Request) {
	from, err := sensors.ParseGate(r.PathValue("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_gate", "from")
		return
	}
	to, err := sensors.ParseGate(r.PathValue("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_gate", "to")
		return
	}

	n := h.svc.Network()
	key := graph.PathKey{From: from, To: to}
	raw, ok := n.Paths[key]
	if !ok {
		writeError(w, http.StatusNotFound, "no_such_edge", "")
		return
	}
	writeJSON(w, PathResponse{
		From:   from,
		To:     to,
		Steps:  len(raw) - 1,
		Raw:    pixelsJSON(raw),
		Smooth: n.SmoothPaths[key],
	})
}

// HandleSnap handles GET /api/v1/snap?x=&y=[&max=].
func (h *Handlers) HandleSnap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, err := parseFinite(q.Get("x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "x")
		return
	}
	y, err := parseFinite(q.Get("y"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "y")
		return
	}
	maxDist := h.opts.SnapDistance
	if s := q.Get("max"); s != "" {
		maxDist, err = parseFinite(s)
		if err != nil || maxDist <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "max")
			return
		}
	}

	res, err := h.svc.Snap(orb.Point{x, y}, maxDist)
	if err != nil {
		writeRoutingError(w, err)
		return
	}
	writeJSON(w, SnapResponse{
		From:     res.Edge.From,
		To:       res.Edge.To,
		Segment:  res.Segment,
		Ratio:    res.Ratio,
		Distance: res.Dist,
		Point:    res.Point,
	})
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.stats)
}

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

func parseGates(names []string) ([]sensors.GateName, error) {
	gates := make([]sensors.GateName, len(names))
	for i, s := range names {
		g, err := sensors.ParseGate(s)
		if err != nil {
			return nil, err
		}
		gates[i] = g
	}
	return gates, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("coordinates must be finite numbers")
	}
	return v, nil
}

func writeRoutingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sensors.ErrUnknownGate):
		writeError(w, http.StatusNotFound, "unknown_gate", "")
	case errors.Is(err, routing.ErrPointTooFar):
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "")
	case errors.Is(err, routing.ErrNoRoute):
		writeError(w, http.StatusNotFound, "no_route_found", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
