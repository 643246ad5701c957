package types

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall state: ready or degraded (worker unreachable).
	// example: ready
	State string `json:"state" example:"ready"`
	// Jobs currently executing on the worker.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum concurrently executing jobs.
	// example: 2
	MaxInflight int `json:"max_inflight" example:"2"`
	// Admitted jobs, queued or running.
	// example: 3
	Queued int `json:"queued" example:"3"`
	// Maximum admitted jobs before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Background jobs (async or streaming) not yet finished.
	// example: 1
	AsyncPending int `json:"async_pending" example:"1"`
	// Total jobs submitted per delivery mode.
	SubmittedByMode map[string]uint64 `json:"submitted_by_mode"`
	// Number of loaded presets.
	// example: 2
	Presets int `json:"presets" example:"2"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
