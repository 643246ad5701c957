package types

// ControlInput is one ControlNet conditioning image as sent by API clients.
type ControlInput struct {
	// Conditioning image: a path, URL, or base64-encoded image.
	// example: person.png
	CnImg string `json:"cn_img" example:"person.png"`
	// Fraction of sampling steps after which this image stops influencing the output.
	// Defaults to 0.6 when omitted.
	// example: 0.6
	CnStop *float64 `json:"cn_stop,omitempty" example:"0.6"`
	// Relative influence of this image. Defaults to 0.5 when omitted.
	// example: 0.5
	CnWeight *float64 `json:"cn_weight,omitempty" example:"0.5"`
	// Conditioning type: ImagePrompt, FaceSwap, PyraCanny or CPDS. Defaults to ImagePrompt.
	// example: ImagePrompt
	CnType string `json:"cn_type,omitempty" example:"ImagePrompt"`
}

// ControlNetRequest is the body of POST /v1/controlnet/generate.
type ControlNetRequest struct {
	// Between 1 and 4 conditioning images, applied in order.
	ControlInputs []ControlInput `json:"control_inputs"`
	// Stream progress events as NDJSON. Takes priority over async_process.
	// example: false
	StreamOutput *bool `json:"stream_output,omitempty" example:"false"`
	// Return a job handle immediately instead of waiting for the result.
	// example: false
	AsyncProcess *bool `json:"async_process,omitempty" example:"false"`
	// URL receiving a POST with the job result when an async job finishes.
	// example: https://example.com/hooks/imaged
	WebhookURL *string `json:"webhook_url,omitempty" example:"https://example.com/hooks/imaged"`
}

// JobHandle is returned for asynchronous submissions.
type JobHandle struct {
	// Opaque job identifier.
	// example: 4f0c2a8e-6a55-4d8b-9a55-2c5a1f1f3c11
	JobID string `json:"job_id" example:"4f0c2a8e-6a55-4d8b-9a55-2c5a1f1f3c11"`
	// Status at submission time (always "queued").
	// example: queued
	Status JobStatus `json:"job_status" example:"queued"`
	// Relative URL to poll for the job result.
	// example: /v1/jobs/4f0c2a8e-6a55-4d8b-9a55-2c5a1f1f3c11
	StatusURL string `json:"status_url,omitempty" example:"/v1/jobs/4f0c2a8e-6a55-4d8b-9a55-2c5a1f1f3c11"`
	// Webhook that will receive the result, if any.
	WebhookURL string `json:"webhook_url,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Offending request field, for validation errors.
	// example: cn_stop
	Field string `json:"field,omitempty" example:"cn_stop"`
	// Offending control input index, for conditioning errors.
	// example: 1
	Index *int `json:"index,omitempty" example:"1"`
}
