package session

import "time"

const (
	ChatKindPrivate = "PRIV"
	ChatKindPublic  = "PUB"
)

// Session is one continuous live-location recording, uniquely addressed by
// the (OwnerID, ChatID, MsgID) triple so repeated edits of the same
// live-location message always resolve to the same record.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	ChatID    int64     `json:"chat_id"`
	MsgID     int64     `json:"msg_id"`
	ChatKind  string    `json:"chat_kind"`
	ChatLabel string    `json:"chat_label"`
	StartedAt time.Time `json:"started_at"`

	// LengthM and DurationS accumulate over accepted movement only and
	// never decrease.
	LengthM   float64 `json:"length_m"`
	DurationS float64 `json:"duration_s"`

	// LastUpdate/LastLat/LastLon are the reference the next fix is
	// measured against.
	LastUpdate time.Time `json:"last_update"`
	LastLat    float64   `json:"last_lat"`
	LastLon    float64   `json:"last_lon"`

	// SegmentIdx only grows; SegmentPoints counts points accepted into
	// the current segment.
	SegmentIdx    int `json:"segment_idx"`
	SegmentPoints int `json:"segment_points"`
}

// Point is one accepted fix. Immutable once written.
type Point struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	OwnerID    int64     `json:"owner_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Ts         time.Time `json:"ts"`
	SegmentIdx int       `json:"segment_idx"`
}

// Update is the explicit diff of mutable session fields. Nil means
// "unchanged". It is the only way session state is written back.
type Update struct {
	LengthM       *float64
	DurationS     *float64
	LastUpdate    *time.Time
	LastLat       *float64
	LastLon       *float64
	SegmentIdx    *int
	SegmentPoints *int
}

// IsEmpty reports whether the update would touch no fields.
func (u Update) IsEmpty() bool {
	return u.LengthM == nil && u.DurationS == nil && u.LastUpdate == nil &&
		u.LastLat == nil && u.LastLon == nil && u.SegmentIdx == nil && u.SegmentPoints == nil
}

// Apply mirrors the update onto an in-memory session so a caller holding
// the record can keep evaluating fixes without a re-read.
func (u Update) Apply(s *Session) {
	if u.LengthM != nil {
		s.LengthM = *u.LengthM
	}
	if u.DurationS != nil {
		s.DurationS = *u.DurationS
	}
	if u.LastUpdate != nil {
		s.LastUpdate = *u.LastUpdate
	}
	if u.LastLat != nil {
		s.LastLat = *u.LastLat
	}
	if u.LastLon != nil {
		s.LastLon = *u.LastLon
	}
	if u.SegmentIdx != nil {
		s.SegmentIdx = *u.SegmentIdx
	}
	if u.SegmentPoints != nil {
		s.SegmentPoints = *u.SegmentPoints
	}
}

// ListEntry is one row of the paginated session list.
type ListEntry struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	ChatLabel string    `json:"chat_label"`
	Points    int       `json:"points"`
	LengthM   float64   `json:"length_m"`
	DurationS float64   `json:"duration_s"`
}
