// Package registry implements C4: the static description of both step
// graphs — for each source status, the step to invoke and the next
// status on success, plus the named predicates that gate special
// transitions.
//
// Grounded on footage_autolog.py's status_map dicts inside
// process_footage_task/process_frame_task.
package registry

import (
	"time"

	"github.com/ffbk-dev/autolog-controller/record"
)

// Predicate names the special-cased gating behavior attached to a step.
// The engine, not this package, implements the predicate's logic (it
// needs the status cache and, for the quality gate, a mandatory re-read);
// the registry only records which predicate applies where.
type Predicate int

const (
	PredicateNone Predicate = iota
	// URLGated marks the step entered from "3 - Creating Frames": skip
	// without invoking a process if the footage has no URL; for
	// LF-prefixed footage, divert to Awaiting User Input (both levels)
	// instead of running the step at all.
	URLGated
	// RequiresFrameCompletion marks step 6, entered from
	// "5 - Processing Frame Info": all child frames must be ready
	// before the step runs.
	RequiresFrameCompletion
	// FrameDependencyOnly marks the step entered from
	// "4 - Scraping URL" that hands off to frame processing: the
	// engine performs a mandatory re-read and quality-gate evaluation
	// before running it.
	FrameDependencyOnly
)

// FootageStep describes one entry in the footage step graph.
type FootageStep struct {
	Script      string
	NextStatus  record.FootageStatus
	FinalStatus record.FootageStatus // zero value means "none"
	Predicate   Predicate
	Timeout     time.Duration
}

// FrameStep describes one entry in the frame step graph.
type FrameStep struct {
	Script     string
	NextStatus record.FrameStatus
	Timeout    time.Duration
}

const (
	defaultStepTimeout = 300 * time.Second
	frameStepTimeout   = 1800 * time.Second
)

// Footage is the static source_status -> step table for footage.
var Footage = map[record.FootageStatus]FootageStep{
	record.StatusPendingFileInfo: {
		Script: "get_file_info", NextStatus: record.StatusFileInfoComplete, Timeout: defaultStepTimeout,
	},
	record.StatusFileInfoComplete: {
		Script: "generate_thumbnails", NextStatus: record.StatusThumbnailsComplete, Timeout: defaultStepTimeout,
	},
	record.StatusThumbnailsComplete: {
		Script: "create_frames", NextStatus: record.StatusCreatingFrames, Timeout: defaultStepTimeout,
	},
	record.StatusCreatingFrames: {
		Script: "scrape_url", NextStatus: record.StatusScrapingURL, Predicate: URLGated, Timeout: defaultStepTimeout,
	},
	// Entered from "4 - Scraping URL". The engine performs a mandatory
	// re-read and evaluates the metadata-quality predicate before
	// running this step; on a bad verdict it diverts to Awaiting User
	// Input instead, per §9's design note on step-4 freshness.
	record.StatusScrapingURL: {
		Script: "process_frames", NextStatus: record.StatusProcessingFrameInfo, Predicate: FrameDependencyOnly, Timeout: defaultStepTimeout,
	},
	// Entered from "5 - Processing Frame Info". next_status is the
	// in-progress marker patched before the script runs; final_status
	// is patched only on success, and frame statuses are left
	// untouched either way (invariant 3).
	record.StatusProcessingFrameInfo: {
		Script: "generate_description", NextStatus: record.StatusGeneratingDescription,
		FinalStatus: record.StatusGeneratingEmbeddings, Predicate: RequiresFrameCompletion, Timeout: defaultStepTimeout,
	},
	// Force Resume bypasses metadata evaluation and goes straight to
	// frame processing.
	record.StatusForceResume: {
		Script: "process_frames", NextStatus: record.StatusProcessingFrameInfo, Timeout: defaultStepTimeout,
	},
}

// Frame is the static source_status -> step table for frames.
// "4 - Audio Transcribed" is terminal and deliberately absent: the
// controller never chains past it.
var Frame = map[record.FrameStatus]FrameStep{
	record.FrameStatusPendingThumbnail: {
		Script: "thumb", NextStatus: record.FrameStatusThumbnailComplete, Timeout: defaultStepTimeout,
	},
	record.FrameStatusThumbnailComplete: {
		Script: "caption", NextStatus: record.FrameStatusCaptionGenerated, Timeout: defaultStepTimeout,
	},
	record.FrameStatusCaptionGenerated: {
		Script: "audio", NextStatus: record.FrameStatusAudioTranscribed, Timeout: frameStepTimeout,
	},
	record.FrameStatusForceResume: {
		Script: "caption", NextStatus: record.FrameStatusCaptionGenerated, Timeout: defaultStepTimeout,
	},
}

// NextFootageStep looks up the registered step for a footage status,
// reporting ok=false for an unregistered (or terminal) status.
func NextFootageStep(status record.FootageStatus) (FootageStep, bool) {
	s, ok := Footage[status]
	return s, ok
}

// NextFrameStep looks up the registered step for a frame status.
func NextFrameStep(status record.FrameStatus) (FrameStep, bool) {
	s, ok := Frame[status]
	return s, ok
}
