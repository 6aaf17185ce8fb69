package model

// FFProbeOutput is the subset of `ffprobe -show_format -of json` that the prober reads.
type FFProbeOutput struct {
	Format struct {
		Filename   string `json:"filename"`
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}
