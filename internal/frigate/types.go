// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package frigate

import (
	"net/url"
	"strconv"
	"time"
)

// Event is one detection event as returned by GET /api/events.
// Times are epoch seconds with fractional precision, matching the API.
type Event struct {
	ID          string   `json:"id"`
	Camera      string   `json:"camera"`
	Label       string   `json:"label"`
	SubLabel    *string  `json:"sub_label"`
	StartTime   float64  `json:"start_time"`
	EndTime     *float64 `json:"end_time"`
	TopScore    float64  `json:"top_score"`
	Zones       []string `json:"zones"`
	HasSnapshot bool     `json:"has_snapshot"`
	HasClip     bool     `json:"has_clip"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
}

// Started converts the event start time to a time.Time.
func (e *Event) Started() time.Time {
	return epochToTime(e.StartTime)
}

// Ended converts the event end time, or returns the zero time while the
// event is still in progress.
func (e *Event) Ended() time.Time {
	if e.EndTime == nil {
		return time.Time{}
	}
	return epochToTime(*e.EndTime)
}

func epochToTime(epoch float64) time.Time {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// EventsQuery narrows GET /api/events. Zero values are omitted from the
// query string.
type EventsQuery struct {
	Camera     string
	Label      string
	Zone       string
	After      *time.Time
	Before     *time.Time
	Limit      int
	InProgress *bool
}

func (q EventsQuery) values() url.Values {
	v := url.Values{}
	if q.Camera != "" {
		v.Set("camera", q.Camera)
	}
	if q.Label != "" {
		v.Set("label", q.Label)
	}
	if q.Zone != "" {
		v.Set("zone", q.Zone)
	}
	if q.After != nil {
		v.Set("after", strconv.FormatInt(q.After.Unix(), 10))
	}
	if q.Before != nil {
		v.Set("before", strconv.FormatInt(q.Before.Unix(), 10))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.InProgress != nil {
		if *q.InProgress {
			v.Set("in_progress", "1")
		} else {
			v.Set("in_progress", "0")
		}
	}
	return v
}

// Stats is the subset of GET /api/stats the bridge consumes.
type Stats struct {
	Service   ServiceStats             `json:"service"`
	Detectors map[string]DetectorStats `json:"detectors"`
	Cameras   map[string]CameraStats   `json:"cameras"`
}

// ServiceStats describes the Frigate process itself.
type ServiceStats struct {
	Uptime  float64                 `json:"uptime"`
	Version string                  `json:"version"`
	Storage map[string]StorageStats `json:"storage"`
}

// DetectorStats describes one object detector.
type DetectorStats struct {
	InferenceSpeed float64 `json:"inference_speed"`
	DetectionStart float64 `json:"detection_start"`
	PID            int     `json:"pid"`
}

// CameraStats describes one camera's processing rates.
type CameraStats struct {
	CameraFPS    float64 `json:"camera_fps"`
	DetectionFPS float64 `json:"detection_fps"`
	ProcessFPS   float64 `json:"process_fps"`
	SkippedFPS   float64 `json:"skipped_fps"`
}

// StorageStats describes one storage mount, sizes in megabytes.
type StorageStats struct {
	Total float64 `json:"total"`
	Used  float64 `json:"used"`
	Free  float64 `json:"free"`
	Mount string  `json:"mount"`
}
