package media

import (
	"os/exec"
	"sort"

	"iptv-check/work/config"
	"iptv-check/work/logger"
	"iptv-check/work/types"
)

// LookPathFunc finds an executable, exec.LookPath in production.
type LookPathFunc func(file string) (string, error)

// Toolset holds the external programs available for a run. FFprobe and
// Tesseract are set only when OCR is enabled; YtDlp is nil when it is not
// installed.
type Toolset struct {
	FFmpeg    *FFmpeg
	FFprobe   *FFprobe
	Tesseract *Tesseract
	YtDlp     *YtDlp
}

// LookupTools resolves the programs needed by cfg on PATH.
func LookupTools(cfg *config.Config) (*Toolset, error) {
	return FindTools(cfg, exec.LookPath)
}

// FindTools resolves the programs needed by cfg with look. ffmpeg is always
// required; ffprobe and tesseract are required with OCR. yt-dlp is optional.
func FindTools(cfg *config.Config, look LookPathFunc) (*Toolset, error) {
	var missing []string
	find := func(override, name string, required bool) string {
		if override != "" {
			name = override
		}
		path, err := look(name)
		if err != nil {
			if required {
				missing = append(missing, name)
			}
			return ""
		}
		return path
	}

	ts := &Toolset{}

	if path := find(cfg.FFmpegPath, "ffmpeg", true); path != "" {
		ts.FFmpeg = &FFmpeg{
			Path:           path,
			UserAgent:      cfg.UserAgent,
			AudioUserAgent: cfg.AudioUserAgent,
			Patterns:       NewStreamPatterns(cfg.StreamPatterns),
			Grace:          cfg.CaptureGrace,
		}
	}

	if cfg.OCR {
		if path := find(cfg.FFprobePath, "ffprobe", true); path != "" {
			ts.FFprobe = &FFprobe{Path: path}
		}
		if path := find(cfg.TesseractPath, "tesseract", true); path != "" {
			ts.Tesseract = &Tesseract{Path: path, Language: cfg.OCRLanguage}
		}
	}

	if path := find(cfg.YtDlpPath, "yt-dlp", false); path != "" {
		ts.YtDlp = &YtDlp{Path: path}
	} else {
		logger.Debug("{media - FindTools} yt-dlp not found, YouTube links will be probed directly")
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &types.SetupError{
			Missing: missing,
			Hint:    "install them with your package manager, e.g. 'sudo apt install ffmpeg tesseract-ocr'",
		}
	}

	return ts, nil
}
