package filter

import (
	"testing"

	"github.com/bilgisen/newsbyte/internal/models"
)

func TestContentFilter_Clean(t *testing.T) {
	f := New()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"noise tags", "[Music] Hello there [APPLAUSE] friends [laughter]", "Hello there friends"},
		{"background music tag", "[Background Music] the anchor speaks", "the anchor speaks"},
		{"repeated word", "Heat Heat Heat is rising", "Heat is rising"},
		{"repeated word case insensitive", "heat HEAT Heat now", "heat now"},
		{"repeat keeps trailing punctuation", "the the. end", "the. end"},
		{"non adjacent repeats stay", "news and news", "news and news"},
		{"repeated phrase", "breaking news breaking news breaking news today", "breaking news today"},
		{"repeated phrase case insensitive", "Breaking News breaking news", "Breaking News"},
		{"phrase repeat keeps trailing punctuation", "prime minister said prime minister said. next", "prime minister said. next"},
		{"nested repeats", "go go go team go go go team", "go team"},
		{"punctuation inside phrase breaks the match", "yes, sir yes, sir", "yes, sir yes, sir"},
		{"whitespace normalized", "  a \n\t b   c ", "a b c"},
		{"dirty transcript", "[Music] Heat Heat Heat [Music] This is actual news content about politics [Applause] More content here [Music]",
			"Heat This is actual news content about politics More content here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContentFilter_IsMeaningful(t *testing.T) {
	f := New()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"music only", "[Music] Heat Heat Heat [Music] [Applause]", false},
		{"music with beats", "[Music] Heat Heat Heat Heat Beat Beat [Music] [Applause]", false},
		{"real report", "This is a real news report about an election involving the parliament and the prime minister today", true},
		{"too few words", "The parliament convened today for talks", false},
		{"too few unique words", "alpha beta gamma alpha beta gamma alpha beta gamma alpha beta gamma", false},
		{"noise heavy", "sound sounds soundcheck beats beating musical report from the capital city today", false},
		{"dominant token", "vote one vote two vote three vote four vote five vote six vote", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IsMeaningful(tt.in, DefaultMinWords, DefaultMinUniqueWords); got != tt.want {
				t.Errorf("IsMeaningful(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestContentFilter_IsMeaningfulDefaultsOnZeroThresholds(t *testing.T) {
	f := New()
	if f.IsMeaningful("The parliament convened today for talks", 0, 0) {
		t.Error("zero thresholds should fall back to the defaults")
	}
}

func TestContentFilter_IsLive(t *testing.T) {
	f := New()

	tests := []struct {
		title       string
		description string
		want        bool
	}{
		{"LIVE: Breaking News Conference", "", true},
		{"Regular news video about cricket", "", false},
		{"NDTV पत्रकार सम्मेलन LIVE", "", true},
		{"Press conference streaming now", "", true},
		{"Minister addresses press meet", "", true},
		{"Evening bulletin", "Watch the press conference in full", true},
		{"Evening bulletin", "Recap of the day", false},
		{"चुनाव लाइव अपडेट", "", true},
	}

	for _, tt := range tests {
		if got := f.IsLive(tt.title, tt.description); got != tt.want {
			t.Errorf("IsLive(%q, %q) = %v, want %v", tt.title, tt.description, got, tt.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("one two  three"); got != 3 {
		t.Errorf("WordCount = %d, want 3", got)
	}
	if got := WordCount(""); got != 0 {
		t.Errorf("WordCount(empty) = %d, want 0", got)
	}
}

func TestClassifyGenre(t *testing.T) {
	tests := []struct {
		text string
		want models.Genre
	}{
		{"This is a real news report about an election involving the parliament", models.GenrePolitics},
		{"The team won the match in the final over", models.GenreSports},
		{"A new smartphone launched with AI features", models.GenreTechnology},
		{"The actor spoke about his new film", models.GenreEntertainment},
		{"Police conducted a raid after the attack", models.GenreCrime},
		{"He said the weather will stay mild", models.GenreGeneral},
		{"", models.GenreGeneral},
		{"Elections were announced for next month", models.GenrePolitics},
	}

	for _, tt := range tests {
		if got := ClassifyGenre(tt.text); got != tt.want {
			t.Errorf("ClassifyGenre(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
