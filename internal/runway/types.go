// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package runway

import (
	"github.com/ManuGH/shotline/internal/storyboard"
)

// Defaults for the text-to-video endpoint.
const (
	DefaultBaseURL = "https://api.dev.runwayml.com/v1"
	DefaultVersion = "2024-11-06"
	DefaultModel   = "veo3.1_fast"
	DefaultRatio   = "1280:720"

	// MaxPromptLength is measured in UTF-16 code units.
	MaxPromptLength = 1000
)

// ValidDurations are the clip lengths the model accepts, in seconds.
var ValidDurations = []int{4, 6, 8}

// aspectRatios maps editorial aspect ratios to the pixel formats the
// text-to-video endpoint supports.
var aspectRatios = map[string]string{
	"16:9": "1920:1080",
	"9:16": "1080:1920",
	"4:3":  "1280:720",
	"3:4":  "720:1280",
	"1:1":  "1280:720",
	"21:9": "1920:1080",
}

var pixelRatios = map[string]bool{
	"1280:720":  true,
	"720:1280":  true,
	"1080:1920": true,
	"1920:1080": true,
}

// PixelRatio resolves an aspect ratio or pixel format to a supported pixel
// format. Empty and unknown values fall back to fallback, or DefaultRatio.
func PixelRatio(ratio, fallback string) string {
	if px, ok := aspectRatios[ratio]; ok {
		return px
	}
	if pixelRatios[ratio] {
		return ratio
	}
	if fallback != "" && fallback != ratio {
		return PixelRatio(fallback, "")
	}
	return DefaultRatio
}

// GenerateRequest starts a text-to-video task.
type GenerateRequest struct {
	Prompt    string `json:"prompt"`
	Duration  int    `json:"duration,omitempty"`
	Ratio     string `json:"ratio,omitempty"`
	Seed      *int64 `json:"seed,omitempty"`
	Watermark *bool  `json:"watermark,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// GenerateResponse is the accepted task.
type GenerateResponse struct {
	TaskID    string            `json:"taskId"`
	Status    storyboard.Status `json:"status"`
	CreatedAt string            `json:"createdAt,omitempty"`
}

// TaskStatus is the normalized state of a remote task.
type TaskStatus struct {
	TaskID                      string            `json:"taskId"`
	Status                      storyboard.Status `json:"status"`
	Progress                    float64           `json:"progress"`
	ProgressText                string            `json:"progressText,omitempty"`
	VideoURL                    string            `json:"videoUrl,omitempty"`
	Error                       string            `json:"error,omitempty"`
	EstimatedTimeToStartSeconds *float64          `json:"estimatedTimeToStartSeconds,omitempty"`
}

// textToVideoBody is the upstream request payload.
type textToVideoBody struct {
	Model       string `json:"model"`
	PromptText  string `json:"promptText"`
	Ratio       string `json:"ratio"`
	Duration    int    `json:"duration,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
	Watermark   *bool  `json:"watermark,omitempty"`
	PromptImage string `json:"promptImage,omitempty"`
}

// taskPayload is the upstream task document. Several fields have aliases.
type taskPayload struct {
	ID                          string            `json:"id"`
	TaskID                      string            `json:"taskId"`
	Status                      storyboard.Status `json:"status"`
	CreatedAt                   string            `json:"createdAt"`
	Progress                    *float64          `json:"progress"`
	ProgressRatio               *float64          `json:"progressRatio"`
	ProgressText                string            `json:"progressText"`
	EstimatedTimeToStartSeconds *float64          `json:"estimatedTimeToStartSeconds"`
	Artifacts                   []struct {
		URL string `json:"url"`
	} `json:"artifacts"`
	Output      []string `json:"output"`
	Failure     string   `json:"failure"`
	FailureCode string   `json:"failureCode"`
	Error       string   `json:"error"`
}

func (p taskPayload) id() string {
	if p.ID != "" {
		return p.ID
	}
	return p.TaskID
}

func (p taskPayload) toStatus() TaskStatus {
	out := TaskStatus{
		TaskID:                      p.id(),
		Status:                      p.Status,
		ProgressText:                p.ProgressText,
		Error:                       p.Error,
		EstimatedTimeToStartSeconds: p.EstimatedTimeToStartSeconds,
	}
	switch {
	case p.Progress != nil && *p.Progress != 0:
		out.Progress = *p.Progress
	case p.ProgressRatio != nil:
		out.Progress = *p.ProgressRatio
	}
	if len(p.Artifacts) > 0 && p.Artifacts[0].URL != "" {
		out.VideoURL = p.Artifacts[0].URL
	} else if len(p.Output) > 0 {
		out.VideoURL = p.Output[0]
	}
	if out.Error == "" {
		out.Error = p.Failure
	}
	return out
}
