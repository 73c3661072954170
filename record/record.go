// Package record models the two entity families the controller drives
// through their step graphs: footage and frames.
package record

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Footage is a video clip. Extras carries every field the store returned
// beyond the typed core, passed through unexamined to step invocations.
type Footage struct {
	ID        string
	RecordKey string
	Status    FootageStatus
	URL       string
	FilePath  string
	Extras    map[string]interface{}
}

// IsLibraryFootage reports whether this footage is LF-prefixed and
// therefore subject to the manual-review gate at step 4.
func (f Footage) IsLibraryFootage() bool {
	return IsLibraryFootage(f.ID)
}

// HasURL reports whether the URL field is present for the purposes of the
// step-4 URL gate. Whitespace-only values count as absent.
func (f Footage) HasURL() bool {
	return strings.TrimSpace(f.URL) != ""
}

// Frame is a sampled still owned by exactly one footage.
type Frame struct {
	ID         string
	ParentID   string
	RecordKey  string
	Status     FrameStatus
	Caption    string
	Transcript string
	Extras     map[string]interface{}
}

// Ready reports whether a frame has reached the audio-transcribed
// status with a non-empty caption, or any status textually past it — the
// readiness predicate used to gate a parent's step 6 (invariant 2 of the
// data model).
func (f Frame) Ready() bool {
	if f.Status == FrameStatusAudioTranscribed {
		return f.Caption != ""
	}
	switch f.Status {
	case FrameStatusGeneratingEmbeddings, FrameStatusEmbeddingsComplete, FrameStatusComplete:
		return true
	default:
		return false
	}
}

// FootageFieldMapping and FrameFieldMapping name the store's field keys
// for each typed core attribute.
// Kept as a single table so a schema change touches one place, mirroring
// the source system's FIELD_MAPPING dictionary.
var FootageFieldMapping = struct {
	ID       string
	Status   string
	URL      string
	FilePath string
}{
	ID:       "INFO_FTG_ID",
	Status:   "AutoLog_Status",
	URL:      "SPECS_URL",
	FilePath: "SPECS_Filepath_Server",
}

var FrameFieldMapping = struct {
	ID         string
	ParentID   string
	Status     string
	Caption    string
	Transcript string
}{
	ID:         "INFO_FR_ID",
	ParentID:   "FRAMES_ParentID",
	Status:     "FRAMES_Status",
	Caption:    "FRAMES_Caption",
	Transcript: "FRAMES_Transcript",
}

// footageWire names the store's field keys via mapstructure tags, so
// mapstructure.Decode fills the typed core in one pass and leaves
// mapstructure.Metadata.Unused telling us exactly which keys to carry
// into Extras, instead of a hand-written field-by-field switch.
type footageWire struct {
	ID       string `mapstructure:"INFO_FTG_ID"`
	Status   string `mapstructure:"AutoLog_Status"`
	URL      string `mapstructure:"SPECS_URL"`
	FilePath string `mapstructure:"SPECS_Filepath_Server"`
}

type frameWire struct {
	ID         string `mapstructure:"INFO_FR_ID"`
	ParentID   string `mapstructure:"FRAMES_ParentID"`
	Status     string `mapstructure:"FRAMES_Status"`
	Caption    string `mapstructure:"FRAMES_Caption"`
	Transcript string `mapstructure:"FRAMES_Transcript"`
}

// DecodeFootage builds a typed Footage from a store record's raw field
// bag, keeping every unrecognized key in Extras.
func DecodeFootage(recordKey string, fields map[string]interface{}) Footage {
	var wire footageWire
	meta := &mapstructure.Metadata{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         meta,
		Result:           &wire,
		WeaklyTypedInput: true,
	})
	if err == nil {
		_ = dec.Decode(fields)
	}

	return Footage{
		RecordKey: recordKey,
		ID:        wire.ID,
		Status:    FootageStatus(wire.Status),
		URL:       wire.URL,
		FilePath:  wire.FilePath,
		Extras:    extrasFrom(fields, meta),
	}
}

// DecodeFrame builds a typed Frame from a store record's raw field bag.
func DecodeFrame(recordKey string, fields map[string]interface{}) Frame {
	var wire frameWire
	meta := &mapstructure.Metadata{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         meta,
		Result:           &wire,
		WeaklyTypedInput: true,
	})
	if err == nil {
		_ = dec.Decode(fields)
	}

	return Frame{
		RecordKey:  recordKey,
		ID:         wire.ID,
		ParentID:   wire.ParentID,
		Status:     FrameStatus(wire.Status),
		Caption:    wire.Caption,
		Transcript: wire.Transcript,
		Extras:     extrasFrom(fields, meta),
	}
}

// extrasFrom carries every field mapstructure didn't consume into the
// catch-all bag, keyed by the raw store field name.
func extrasFrom(fields map[string]interface{}, meta *mapstructure.Metadata) map[string]interface{} {
	extras := make(map[string]interface{}, len(meta.Unused))
	for _, k := range meta.Unused {
		extras[k] = fields[k]
	}
	return extras
}
