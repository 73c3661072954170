package record

import "strings"

// FootageStatus is the wire-exact status string for a footage record. The
// strings are the public contract shared with the store and the step
// processes; never derive them, always compare against these constants.
type FootageStatus string

const (
	StatusPendingFileInfo       FootageStatus = "0 - Pending File Info"
	StatusFileInfoComplete      FootageStatus = "1 - File Info Complete"
	StatusThumbnailsComplete    FootageStatus = "2 - Thumbnails Complete"
	StatusCreatingFrames        FootageStatus = "3 - Creating Frames"
	StatusScrapingURL           FootageStatus = "4 - Scraping URL"
	StatusProcessingFrameInfo   FootageStatus = "5 - Processing Frame Info"
	StatusGeneratingDescription FootageStatus = "6 - Generating Description"
	StatusGeneratingEmbeddings  FootageStatus = "7 - Generating Embeddings"
	StatusApplyingTags          FootageStatus = "8 - Applying Tags"
	StatusComplete              FootageStatus = "9 - Complete"
	StatusAwaitingUserInput     FootageStatus = "Awaiting User Input"
	StatusForceResume           FootageStatus = "Force Resume"
)

// FootageProcessingStatuses is the set of statuses discovery pages through
// each cycle.
var FootageProcessingStatuses = []FootageStatus{
	StatusPendingFileInfo,
	StatusFileInfoComplete,
	StatusThumbnailsComplete,
	StatusCreatingFrames,
	StatusScrapingURL,
	StatusProcessingFrameInfo,
	StatusGeneratingDescription,
	StatusForceResume,
}

var footageTerminal = map[FootageStatus]bool{
	StatusGeneratingEmbeddings: true,
	StatusApplyingTags:         true,
	StatusComplete:             true,
	StatusAwaitingUserInput:    true,
}

// IsTerminal reports whether the controller considers this footage status
// final for the purposes of discovery and quiescence.
func (s FootageStatus) IsTerminal() bool {
	return footageTerminal[s]
}

// ParseFootageStatus validates a wire string against the known enumeration.
// Unknown strings are returned as-is with ok=false so callers can decide
// whether an unrecognized status is a FatalConfig condition.
func ParseFootageStatus(s string) (FootageStatus, bool) {
	fs := FootageStatus(s)
	switch fs {
	case StatusPendingFileInfo, StatusFileInfoComplete, StatusThumbnailsComplete,
		StatusCreatingFrames, StatusScrapingURL, StatusProcessingFrameInfo,
		StatusGeneratingDescription, StatusGeneratingEmbeddings, StatusApplyingTags,
		StatusComplete, StatusAwaitingUserInput, StatusForceResume:
		return fs, true
	default:
		return fs, false
	}
}

// FrameStatus is the wire-exact status string for a frame record.
type FrameStatus string

const (
	FrameStatusPendingThumbnail  FrameStatus = "1 - Pending Thumbnail"
	FrameStatusThumbnailComplete FrameStatus = "2 - Thumbnail Complete"
	FrameStatusCaptionGenerated  FrameStatus = "3 - Caption Generated"
	FrameStatusAudioTranscribed  FrameStatus = "4 - Audio Transcribed"
	FrameStatusAwaitingUserInput FrameStatus = "Awaiting User Input"
	FrameStatusForceResume       FrameStatus = "Force Resume"

	// Downstream-only statuses produced by collaborators outside this
	// controller's scope. Recognized as "ready/past" but never written here.
	FrameStatusGeneratingEmbeddings FrameStatus = "5 - Generating Embeddings"
	FrameStatusEmbeddingsComplete   FrameStatus = "6 - Embeddings Complete"
	FrameStatusComplete             FrameStatus = "6 - Complete"
)

// FrameProcessingStatuses is the set of statuses discovery pages through
// each cycle.
var FrameProcessingStatuses = []FrameStatus{
	FrameStatusPendingThumbnail,
	FrameStatusThumbnailComplete,
	FrameStatusCaptionGenerated,
	FrameStatusAudioTranscribed,
	FrameStatusForceResume,
}

var frameTerminal = map[FrameStatus]bool{
	FrameStatusAudioTranscribed:     true,
	FrameStatusGeneratingEmbeddings: true,
	FrameStatusEmbeddingsComplete:   true,
	FrameStatusComplete:             true,
	FrameStatusAwaitingUserInput:    true,
}

// IsTerminal reports whether the controller considers this frame status
// final on its own, ignoring parent status.
func (s FrameStatus) IsTerminal() bool {
	return frameTerminal[s]
}

func ParseFrameStatus(s string) (FrameStatus, bool) {
	fs := FrameStatus(s)
	switch fs {
	case FrameStatusPendingThumbnail, FrameStatusThumbnailComplete, FrameStatusCaptionGenerated,
		FrameStatusAudioTranscribed, FrameStatusAwaitingUserInput, FrameStatusForceResume,
		FrameStatusGeneratingEmbeddings, FrameStatusEmbeddingsComplete, FrameStatusComplete:
		return fs, true
	default:
		return fs, false
	}
}

// IsLibraryFootage reports whether id carries the LF prefix that marks
// library footage requiring the manual-review gate.
func IsLibraryFootage(id string) bool {
	return strings.HasPrefix(id, "LF")
}
