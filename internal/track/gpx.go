package track

import (
	"encoding/xml"
	"fmt"
	"time"
)

type gpxPoint struct {
	XMLName xml.Name `xml:"trkpt"`
	Lat     float64  `xml:"lat,attr"`
	Lon     float64  `xml:"lon,attr"`
	Time    string   `xml:"time,omitempty"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxTrack struct {
	Name     string       `xml:"name,omitempty"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxDoc struct {
	XMLName xml.Name `xml:"gpx"`
	Xmlns   string   `xml:"xmlns,attr"`
	Creator string   `xml:"creator,attr"`
	Version string   `xml:"version,attr"`
	Meta    struct {
		Name string `xml:"name,omitempty"`
		Desc string `xml:"desc,omitempty"`
	} `xml:"metadata"`
	Tracks []gpxTrack `xml:"trk"`
}

// EncodeGPX serializes a reconstructed track as a GPX 1.1 document: one
// track, one trkseg per segment, one trkpt per point.
func EncodeGPX(tr Track) ([]byte, error) {
	doc := gpxDoc{
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Creator: "geolog",
		Version: "1.1",
	}
	doc.Meta.Name = "Telegram GPS track"
	doc.Meta.Desc = "This GPX file was created by the geolog bot"

	trk := gpxTrack{Name: "Telegram GPS track"}
	for _, seg := range tr.Segments {
		gseg := gpxSegment{Points: make([]gpxPoint, 0, len(seg))}
		for _, p := range seg {
			gseg.Points = append(gseg.Points, gpxPoint{
				Lat:  p.Lat,
				Lon:  p.Lon,
				Time: p.Ts.UTC().Format(time.RFC3339),
			})
		}
		trk.Segments = append(trk.Segments, gseg)
	}
	doc.Tracks = []gpxTrack{trk}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode gpx: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// GPXFileName derives the suggested download name from the recording start.
func GPXFileName(startedAt time.Time) string {
	t := startedAt.UTC()
	return fmt.Sprintf("TelegramTrack_%d%02d%02d_%02d%02d.gpx",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}
