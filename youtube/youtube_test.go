package youtube

import (
	"strings"
	"testing"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://vimeo.com/12345", "", false},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"https://www.youtube.com/watch", "", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
		{"not a url at all \x7f", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseVideoID(tt.url)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseVideoID(%q) = (%q, %v), want (%q, %v)", tt.url, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWalkBraces(t *testing.T) {
	raw, ok := walkBraces(`junk {"a": {"b": "close } brace in string"}, "c": [1, 2]} trailing`)
	if !ok {
		t.Fatal("object not found")
	}
	if !strings.HasPrefix(raw, `{"a"`) || !strings.HasSuffix(raw, `]}`) {
		t.Errorf("wrong object: %q", raw)
	}

	if _, ok := walkBraces("no braces here"); ok {
		t.Error("found object in brace-free input")
	}
	if _, ok := walkBraces(`{"unterminated": `); ok {
		t.Error("found object in unbalanced input")
	}
}

func TestExtractPlayerResponse(t *testing.T) {
	page := `<html><script>var ytInitialPlayerResponse = {"videoDetails":` +
		`{"videoId":"dQw4w9WgXcQ","title":"Test Video","author":"Tester",` +
		`"shortDescription":"A video."},"captions":{"playerCaptionsTracklistRenderer":` +
		`{"captionTracks":[{"baseUrl":"https://yt.example/tt","languageCode":"en"}]}}};` +
		`var other = {};</script></html>`

	pr, err := extractPlayerResponse(page)
	if err != nil {
		t.Fatal(err)
	}
	if pr.VideoDetails.Title != "Test Video" {
		t.Errorf("title = %q", pr.VideoDetails.Title)
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) != 1 || tracks[0].LanguageCode != "en" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestSelectTrack_Priority(t *testing.T) {
	manualEN := captionTrack{BaseURL: "m-en", LanguageCode: "en"}
	autoEN := captionTrack{BaseURL: "a-en", LanguageCode: "en", Kind: "asr"}
	manualDE := captionTrack{BaseURL: "m-de", LanguageCode: "de"}
	autoFR := captionTrack{BaseURL: "a-fr", LanguageCode: "fr", Kind: "asr"}

	// Manual in requested language wins.
	if got := selectTrack([]captionTrack{autoEN, manualDE, manualEN}, "en"); got.BaseURL != "m-en" {
		t.Errorf("got %q, want manual en", got.BaseURL)
	}
	// Auto in requested language beats foreign manual.
	if got := selectTrack([]captionTrack{manualDE, autoEN}, "en"); got.BaseURL != "a-en" {
		t.Errorf("got %q, want auto en", got.BaseURL)
	}
	// Any manual beats auto when the language is missing.
	if got := selectTrack([]captionTrack{autoFR, manualDE}, "en"); got.BaseURL != "m-de" {
		t.Errorf("got %q, want manual de", got.BaseURL)
	}
	// First track is the last resort.
	if got := selectTrack([]captionTrack{autoFR}, "en"); got.BaseURL != "a-fr" {
		t.Errorf("got %q, want first", got.BaseURL)
	}
	if got := selectTrack(nil, "en"); got != nil {
		t.Error("nil track list should select nothing")
	}
}

func TestDecodeXMLCaptions(t *testing.T) {
	body := `<?xml version="1.0"?><transcript>
	<text start="0.5" dur="2.1">Hello &amp;amp; welcome</text>
	<text start="2.6" dur="3.0">to the <i>show</i></text>
	<text start="5.6" dur="1.0">   </text>
	</transcript>`

	segs := decodeXML([]byte(body))
	if len(segs) != 2 {
		t.Fatalf("segments = %+v", segs)
	}
	if segs[0].Text != "Hello & welcome" {
		t.Errorf("entities not double-decoded: %q", segs[0].Text)
	}
	if segs[1].Text != "to the show" {
		t.Errorf("inline tags not stripped: %q", segs[1].Text)
	}
	if segs[0].Start != 0.5 || segs[0].Dur != 2.1 {
		t.Errorf("timing wrong: %+v", segs[0])
	}
}

func TestDecodeJSON3Captions(t *testing.T) {
	body := `{"events":[
	{"tStartMs":1000,"dDurationMs":2000,"segs":[{"utf8":"first "},{"utf8":"cue"}]},
	{"tStartMs":3000,"dDurationMs":1000,"segs":[{"utf8":"\n"}]},
	{"tStartMs":4000,"dDurationMs":1500,"segs":[{"utf8":"second cue"}]}
	]}`

	segs := decodeJSON3([]byte(body))
	if len(segs) != 2 {
		t.Fatalf("segments = %+v", segs)
	}
	if segs[0].Text != "first cue" || segs[0].Start != 1.0 {
		t.Errorf("seg 0 = %+v", segs[0])
	}
	if segs[1].Text != "second cue" || segs[1].Start != 4.0 {
		t.Errorf("seg 1 = %+v", segs[1])
	}
}

func TestParseChapters(t *testing.T) {
	desc := "A great video.\n0:00 Intro\n2:15 The middle part\n1:02:30 Closing thoughts\nsupport us at https://example.com"
	chapters := ParseChapters(desc)
	if len(chapters) != 3 {
		t.Fatalf("chapters = %+v", chapters)
	}
	if chapters[0].Start != 0 || chapters[0].Title != "Intro" {
		t.Errorf("chapter 0 = %+v", chapters[0])
	}
	if chapters[1].Start != 135 {
		t.Errorf("chapter 1 start = %d", chapters[1].Start)
	}
	if chapters[2].Start != 3750 {
		t.Errorf("chapter 2 start = %d", chapters[2].Start)
	}

	// A single timestamped line is not a chapter list.
	if got := ParseChapters("check 1:30 for the good part"); got != nil {
		t.Errorf("lone timestamp treated as chapters: %+v", got)
	}
}

func TestKeyPoints_PerChapter(t *testing.T) {
	segs := []Segment{
		{Start: 0, Text: "Welcome everyone to this long introduction session."},
		{Start: 50, Text: "short bit"},
		{Start: 130, Text: "Now we move into the main discussion of the topic."},
	}
	chapters := []Chapter{{Start: 0, Title: "Intro"}, {Start: 120, Title: "Main"}}
	points := KeyPoints(segs, chapters)
	if len(points) != 2 {
		t.Fatalf("points = %+v", points)
	}
	if !strings.Contains(points[0], "Welcome everyone") ||
		!strings.Contains(points[1], "main discussion") {
		t.Errorf("points = %+v", points)
	}
}

func TestSummarize(t *testing.T) {
	short := "Just a few words."
	if Summarize(short) != short {
		t.Error("short text altered")
	}

	long := strings.TrimSpace(strings.Repeat("word ", 500))
	sum := Summarize(long)
	if n := len(strings.Fields(sum)); n > summaryWordCap+1 {
		t.Errorf("summary has %d words", n)
	}
}
