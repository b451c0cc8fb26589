package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"iptv-check/work/logger"
	"iptv-check/work/types"
)

// FFprobe analyses captured artifacts with the ffprobe binary.
type FFprobe struct {
	Path string
}

type probeOutput struct {
	Format struct {
		BitRate string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Analyze inspects a local media file.
func (p *FFprobe) Analyze(ctx context.Context, media string) (types.StreamHealthData, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	cmd := newCommand(ctx, p.Path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-i", media)

	output, err := cmd.Output()
	if err != nil {
		return types.StreamHealthData{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	health, err := parseProbeOutput(output)
	if err != nil {
		return health, err
	}

	logger.Debug("[FFPROBE] %s: video=%v audio=%v bitrate=%d resolution=%s fps=%.2f",
		media, health.HasVideo, health.HasAudio, health.Bitrate, health.Resolution, health.FPS)

	return health, nil
}

func parseProbeOutput(output []byte) (types.StreamHealthData, error) {
	health := types.StreamHealthData{}

	var result probeOutput
	if err := json.Unmarshal(output, &result); err != nil {
		return health, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			if health.HasVideo {
				continue
			}
			health.HasVideo = stream.Width > 0 && stream.Height > 0
			if health.HasVideo {
				health.Resolution = fmt.Sprintf("%dx%d", stream.Width, stream.Height)
				health.FPS = parseFrameRate(stream.AvgFrameRate)
				if health.FPS == 0 {
					health.FPS = parseFrameRate(stream.RFrameRate)
				}
			}
		case "audio":
			if stream.CodecName != "" {
				health.HasAudio = true
			}
		}
	}

	if result.Format.BitRate != "" {
		if bitrate, err := strconv.ParseInt(result.Format.BitRate, 10, 64); err == nil {
			health.Bitrate = bitrate
		}
	}

	health.Valid = true
	return health, nil
}

// parseFrameRate converts "num/den" frame rates to a float, 0 when invalid.
func parseFrameRate(frameRate string) float64 {
	parts := strings.Split(frameRate, "/")
	if len(parts) != 2 {
		return 0
	}

	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}

	return num / den
}
