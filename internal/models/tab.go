package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// TabRecord is the popup's view of one music tab.
//
// Nullable player fields are pointers; a nil value means the tab has not reported it.
// TabID, FaviconURL, SiteName and HidePlayer never change after creation.
type TabRecord struct {
	TabID             string  `json:"tabId"`
	Song              *string `json:"song"`
	Artist            *string `json:"artist"`
	IsPlaying         *bool   `json:"isPlaying"`
	CanPlayPause      *bool   `json:"canPlayPause"`
	CanPlayNext       *bool   `json:"canPlayNext"`
	CanPlayPrev       *bool   `json:"canPlayPrev"`
	CanLike           *bool   `json:"canLike"`
	CanDislike        *bool   `json:"canDislike"`
	DefaultTab        bool    `json:"defaultTab"`
	StreamkeysEnabled bool    `json:"streamkeysEnabled"`
	FaviconURL        string  `json:"faviconUrl"`
	SiteName          string  `json:"siteName"`
	HidePlayer        bool    `json:"hidePlayer"`
	ShowSettings      bool    `json:"-"`
}

// NewTabRecord builds a record for a tab seen for the first time.
//
// Metadata comes from desc when present; streamkeysEnabled defaults to true unless the descriptor says otherwise.
// The patch is applied on top of the all-null player state.
func NewTabRecord(tabID string, desc *TabDescriptor, patch *StatePatch) *TabRecord {
	rec := &TabRecord{TabID: tabID, StreamkeysEnabled: true}
	if desc != nil {
		rec.FaviconURL = desc.FaviconURL
		rec.SiteName = desc.SiteName
		rec.HidePlayer = desc.HidePlayer
		rec.DefaultTab = desc.DefaultTab
		if desc.StreamkeysEnabled != nil {
			rec.StreamkeysEnabled = *desc.StreamkeysEnabled
		}
	}

	if patch != nil {
		enabled := rec.StreamkeysEnabled
		patch.ApplyTo(rec)
		// the descriptor is authoritative for the enablement flag at creation
		if desc != nil && desc.StreamkeysEnabled != nil {
			rec.StreamkeysEnabled = enabled
		}
	}
	return rec
}

// Clone returns a deep copy so callers cannot alias the store's pointers.
func (r TabRecord) Clone() TabRecord {
	c := r
	c.Song = cloneString(r.Song)
	c.Artist = cloneString(r.Artist)
	c.IsPlaying = cloneBool(r.IsPlaying)
	c.CanPlayPause = cloneBool(r.CanPlayPause)
	c.CanPlayNext = cloneBool(r.CanPlayNext)
	c.CanPlayPrev = cloneBool(r.CanPlayPrev)
	c.CanLike = cloneBool(r.CanLike)
	c.CanDislike = cloneBool(r.CanDislike)
	return c
}

// SongArtistText is the display line for the record.
//
// It is empty when there is no song, "artist - song" when the artist is known, and the song alone otherwise.
func (r TabRecord) SongArtistText() string {
	if r.Song == nil || *r.Song == "" {
		return ""
	}
	if r.Artist != nil && *r.Artist != "" {
		return *r.Artist + " - " + *r.Song
	}
	return *r.Song
}

// Playing reports whether the tab is known to be playing.
func (r TabRecord) Playing() bool { return IsTrue(r.IsPlaying) }

// NumericTabID returns the id as an integer when it is one.
func (r TabRecord) NumericTabID() (int64, bool) {
	n, err := strconv.ParseInt(r.TabID, 10, 64)
	return n, err == nil
}

// PatchField names one observable player property of a [StatePatch].
type PatchField uint16

const (
	FieldSong PatchField = 1 << iota
	FieldArtist
	FieldStreamkeysEnabled
	FieldIsPlaying
	FieldCanPlayPause
	FieldCanPlayNext
	FieldCanPlayPrev
	FieldCanLike
	FieldCanDislike
)

var patchFieldNames = []struct {
	field PatchField
	name  string
}{
	{FieldSong, "song"},
	{FieldArtist, "artist"},
	{FieldStreamkeysEnabled, "streamkeysEnabled"},
	{FieldIsPlaying, "isPlaying"},
	{FieldCanPlayPause, "canPlayPause"},
	{FieldCanPlayNext, "canPlayNext"},
	{FieldCanPlayPrev, "canPlayPrev"},
	{FieldCanLike, "canLike"},
	{FieldCanDislike, "canDislike"},
}

// StatePatch is a partial player state report.
//
// A field is absent when its pointer is nil and its bit is unset in Nulls; absent fields leave the
// record untouched. A bit set in Nulls means the peer reported an explicit null, which clears the field.
type StatePatch struct {
	Song              *string `json:"song,omitempty"`
	Artist            *string `json:"artist,omitempty"`
	StreamkeysEnabled *bool   `json:"streamkeysEnabled,omitempty"`
	IsPlaying         *bool   `json:"isPlaying,omitempty"`
	CanPlayPause      *bool   `json:"canPlayPause,omitempty"`
	CanPlayNext       *bool   `json:"canPlayNext,omitempty"`
	CanPlayPrev       *bool   `json:"canPlayPrev,omitempty"`
	CanLike           *bool   `json:"canLike,omitempty"`
	CanDislike        *bool   `json:"canDislike,omitempty"`

	Nulls PatchField `json:"-"`
}

type statePatchJSON StatePatch

// UnmarshalJSON decodes the present fields and remembers which ones were sent as null.
func (p *StatePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var decoded statePatchJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	for _, f := range patchFieldNames {
		if v, ok := raw[f.name]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			decoded.Nulls |= f.field
		}
	}
	*p = StatePatch(decoded)
	return nil
}

// MarshalJSON writes explicit nulls back out so a relayed patch keeps its meaning.
func (p StatePatch) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(statePatchJSON(p))
	if err != nil || p.Nulls == 0 {
		return data, err
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for _, f := range patchFieldNames {
		if p.Nulls&f.field != 0 {
			if _, ok := out[f.name]; !ok {
				out[f.name] = json.RawMessage("null")
			}
		}
	}
	return json.Marshal(out)
}

// Cleared reports whether f was reported as an explicit null.
func (p StatePatch) Cleared(f PatchField) bool { return p.Nulls&f != 0 }

// ApplyTo copies every present field into rec and clears the ones reported as null.
//
// streamkeysEnabled has no null state on the record, so a null for it is ignored.
func (p StatePatch) ApplyTo(rec *TabRecord) {
	applyString(&rec.Song, p.Song, p.Cleared(FieldSong))
	applyString(&rec.Artist, p.Artist, p.Cleared(FieldArtist))
	if p.StreamkeysEnabled != nil {
		rec.StreamkeysEnabled = *p.StreamkeysEnabled
	}
	applyBool(&rec.IsPlaying, p.IsPlaying, p.Cleared(FieldIsPlaying))
	applyBool(&rec.CanPlayPause, p.CanPlayPause, p.Cleared(FieldCanPlayPause))
	applyBool(&rec.CanPlayNext, p.CanPlayNext, p.Cleared(FieldCanPlayNext))
	applyBool(&rec.CanPlayPrev, p.CanPlayPrev, p.Cleared(FieldCanPlayPrev))
	applyBool(&rec.CanLike, p.CanLike, p.Cleared(FieldCanLike))
	applyBool(&rec.CanDislike, p.CanDislike, p.Cleared(FieldCanDislike))
}

// Empty reports whether the patch carries no fields, not even explicit nulls.
func (p StatePatch) Empty() bool {
	return p == StatePatch{}
}

func applyString(dst **string, v *string, cleared bool) {
	switch {
	case v != nil:
		*dst = cloneString(v)
	case cleared:
		*dst = nil
	}
}

func applyBool(dst **bool, v *bool, cleared bool) {
	switch {
	case v != nil:
		*dst = cloneBool(v)
	case cleared:
		*dst = nil
	}
}

// TabDescriptor is one element of the enumeration reply.
type TabDescriptor struct {
	TabID             string `json:"tabId"`
	SiteName          string `json:"siteName"`
	FaviconURL        string `json:"faviconUrl"`
	DefaultTab        bool   `json:"defaultTab,omitempty"`
	StreamkeysEnabled *bool  `json:"streamkeysEnabled,omitempty"`
	HidePlayer        bool   `json:"hidePlayer,omitempty"`
}

// String and Bool return pointers to copies of their argument.
func String(s string) *string { return &s }
func Bool(b bool) *bool       { return &b }

// IsTrue reports whether b is non-nil and true.
func IsTrue(b *bool) bool { return b != nil && *b }

// IsFalse reports whether b is non-nil and false.
func IsFalse(b *bool) bool { return b != nil && !*b }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
