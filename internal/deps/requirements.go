package deps

import "clipforge/internal/config"

// Requirements builds the external tool list for the given configuration.
// Optional tools degrade features when missing instead of blocking startup.
func Requirements(cfg *config.Config) []Requirement {
	requirements := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Media.FFmpegBinary,
			Description: "clip extraction, cropping, and scene composition",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "media inspection",
		},
		{
			Name:        "Whisper",
			Command:     cfg.Transcription.Binary,
			Description: "word-level transcription",
		},
	}
	if cfg.Framing.DetectorBinary != "" {
		requirements = append(requirements, Requirement{
			Name:        "Detector",
			Command:     cfg.Framing.DetectorBinary,
			Description: "subject detection for crop planning",
			Optional:    true,
		})
	}
	if cfg.Storage.Backend == "rclone" {
		requirements = append(requirements, Requirement{
			Name:        "Rclone",
			Command:     cfg.Storage.RcloneBinary,
			Description: "remote storage uploads",
		})
	}
	return requirements
}
