// Package params holds the generation parameter template: the full set of
// named options every job starts from, and the overlay rules used to derive a
// job's parameters from it.
//
// A Template is a plain value. Overlay never mutates its receiver; it returns
// a new Template, so a single process-wide template can be shared by
// concurrent requests without locking.
package params

// Template lists every generation option understood by the worker, with
// the service defaults. Field names on the wire are the json tags.
type Template struct {
	Prompt                string   `json:"prompt"`
	NegativePrompt        string   `json:"negative_prompt"`
	ImageNumber           int      `json:"image_number" jsonschema:"minimum=1,maximum=32" validate:"gte=1,lte=32"`
	ImageSeed             int64    `json:"image_seed"`
	StyleSelections       []string `json:"style_selections"`
	PerformanceSelection  string   `json:"performance_selection" jsonschema:"enum=Speed,enum=Quality,enum=Extreme Speed,enum=Lightning,enum=Hyper-SD" validate:"oneof=Speed Quality 'Extreme Speed' Lightning Hyper-SD"`
	AspectRatiosSelection string   `json:"aspect_ratios_selection" jsonschema:"example=704*1344"`
	OutputFormat          string   `json:"output_format" jsonschema:"enum=png,enum=jpeg,enum=webp" validate:"oneof=png jpeg webp"`
	SaveMetadataToImages  bool     `json:"save_metadata_to_images"`
	MetadataScheme        string   `json:"metadata_scheme" jsonschema:"enum=fooocus,enum=a1111" validate:"oneof=fooocus a1111"`
	BaseModelName         string   `json:"base_model_name"`
	RefinerModelName      string   `json:"refiner_model_name"`
	RefinerSwitch         float64  `json:"refiner_switch" jsonschema:"minimum=0.1,maximum=1" validate:"gte=0.1,lte=1"`
	VAEName               string   `json:"vae_name"`
	Sharpness             float64  `json:"sharpness" jsonschema:"minimum=0,maximum=30" validate:"gte=0,lte=30"`
	GuidanceScale         float64  `json:"guidance_scale" jsonschema:"minimum=1,maximum=30" validate:"gte=1,lte=30"`
	AdaptiveCFG           float64  `json:"adaptive_cfg" jsonschema:"minimum=1,maximum=30" validate:"gte=1,lte=30"`
	ClipSkip              int      `json:"clip_skip" jsonschema:"minimum=1,maximum=12" validate:"gte=1,lte=12"`
	SamplerName           string   `json:"sampler_name"`
	SchedulerName         string   `json:"scheduler_name"`
	ADMScalerPositive     float64  `json:"adm_scaler_positive" jsonschema:"minimum=0.1,maximum=3" validate:"gte=0.1,lte=3"`
	ADMScalerNegative     float64  `json:"adm_scaler_negative" jsonschema:"minimum=0.1,maximum=3" validate:"gte=0.1,lte=3"`
	ADMScalerEnd          float64  `json:"adm_scaler_end" jsonschema:"minimum=0,maximum=1" validate:"gte=0,lte=1"`
	FreeUEnabled          bool     `json:"freeu_enabled"`
	FreeUB1               float64  `json:"freeu_b1"`
	FreeUB2               float64  `json:"freeu_b2"`
	FreeUS1               float64  `json:"freeu_s1"`
	FreeUS2               float64  `json:"freeu_s2"`
	StreamOutput          bool     `json:"stream_output"`
	AsyncProcess          bool     `json:"async_process"`
	WebhookURL            string   `json:"webhook_url"`
	Preset                string   `json:"preset"`
	BlackOutNSFW          bool     `json:"black_out_nsfw"`
}

// Default returns the built-in template. Each call returns a fresh value.
func Default() Template {
	return Template{
		Prompt:                "",
		NegativePrompt:        "",
		ImageNumber:           1,
		ImageSeed:             0,
		StyleSelections:       []string{"Fooocus V2", "Fooocus Sharp", "Fooocus Enhance"},
		PerformanceSelection:  "Quality",
		AspectRatiosSelection: "704*1344",
		OutputFormat:          "png",
		SaveMetadataToImages:  true,
		MetadataScheme:        "fooocus",
		BaseModelName:         "juggernautXL_v8Rundiffusion.safetensors",
		RefinerModelName:      "juggernautXL_v8Rundiffusion.safetensors",
		RefinerSwitch:         0.5,
		VAEName:               "Default (model)",
		Sharpness:             2.0,
		GuidanceScale:         4.0,
		AdaptiveCFG:           7.0,
		ClipSkip:              2,
		SamplerName:           "dpmpp_2m_sde_gpu",
		SchedulerName:         "karras",
		ADMScalerPositive:     1.5,
		ADMScalerNegative:     0.8,
		ADMScalerEnd:          0.3,
		FreeUEnabled:          false,
		FreeUB1:               1.01,
		FreeUB2:               1.02,
		FreeUS1:               0.99,
		FreeUS2:               0.95,
		StreamOutput:          false,
		AsyncProcess:          false,
		WebhookURL:            "",
		Preset:                "initial",
		BlackOutNSFW:          true,
	}
}

// Clone returns a copy that shares no mutable state with t.
func (t Template) Clone() Template {
	out := t
	if t.StyleSelections != nil {
		out.StyleSelections = append([]string(nil), t.StyleSelections...)
	}
	return out
}
