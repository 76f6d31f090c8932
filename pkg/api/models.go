package api

// LatLngJSON is a coordinate in request/response bodies.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteRequest is the body of POST /api/v1/route.
type RouteRequest struct {
	Start LatLngJSON `json:"start"`
	End   LatLngJSON `json:"end"`
}

// RouteResponse is the body of a successful route query.
type RouteResponse struct {
	TotalCost float64      `json:"total_cost"`
	NodeIDs   []int64      `json:"node_ids"`
	Geometry  []LatLngJSON `json:"geometry"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	NumNodes     uint32 `json:"num_nodes"`
	NumEdges     uint32 `json:"num_edges"`
	NumShortcuts uint32 `json:"num_shortcuts"`
}
