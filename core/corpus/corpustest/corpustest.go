// Package corpustest provides a small fixture corpus for tests.
//
// The fixture holds chapters 1, 2 and 112 (partial), their forward theme files,
// the chapter metadata index, the theme inverse index and a few tafsir payloads
// covering the consolidated and legacy layouts.
package corpustest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
)

// Chapter1 is Al-Fatihah verses 1-5.
const Chapter1 = `[
  {"ref":"1:1","surah":1,"ayah":1,"arabic":"بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ","english":"In the name of Allah, the Entirely Merciful, the Especially Merciful."},
  {"ref":"1:2","surah":1,"ayah":2,"arabic":"الْحَمْدُ لِلَّهِ رَبِّ الْعَالَمِينَ","english":"All praise is due to Allah, Lord of the worlds."},
  {"ref":"1:3","surah":1,"ayah":3,"arabic":"الرَّحْمَٰنِ الرَّحِيمِ","english":"The Entirely Merciful, the Especially Merciful,"},
  {"ref":"1:4","surah":1,"ayah":4,"arabic":"مَالِكِ يَوْمِ الدِّينِ","english":"Sovereign of the Day of Recompense."},
  {"ref":"1:5","surah":1,"ayah":5,"arabic":"إِيَّاكَ نَعْبُدُ وَإِيَّاكَ نَسْتَعِينُ","english":"It is You we worship and You we ask for help."}
]`

// Chapter2 is a selection of Al-Baqarah.
const Chapter2 = `[
  {"ref":"2:3","surah":2,"ayah":3,"arabic":"الَّذِينَ يُؤْمِنُونَ بِالْغَيْبِ وَيُقِيمُونَ الصَّلَاةَ","english":"Who believe in the unseen, establish prayer, and spend out of what We have provided for them,"},
  {"ref":"2:8","surah":2,"ayah":8,"arabic":"وَمِنَ النَّاسِ مَن يَقُولُ آمَنَّا بِاللَّهِ وَبِالْيَوْمِ الْآخِرِ وَمَا هُم بِمُؤْمِنِينَ","english":"And of the people are some who say, \"We believe in Allah and the Last Day,\" but they are not believers."},
  {"ref":"2:143","surah":2,"ayah":143,"arabic":"وَكَذَٰلِكَ جَعَلْنَاكُمْ أُمَّةً وَسَطًا","english":"Indeed Allah is, to the people, Kind and Merciful."},
  {"ref":"2:255","surah":2,"ayah":255,"arabic":"اللَّهُ لَا إِلَٰهَ إِلَّا هُوَ الْحَيُّ الْقَيُّومُ","english":"Allah - there is no deity except Him, the Ever-Living, the Sustainer of existence."},
  {"ref":"2:285","surah":2,"ayah":285,"arabic":"آمَنَ الرَّسُولُ بِمَا أُنزِلَ إِلَيْهِ مِن رَّبِّهِ وَالْمُؤْمِنُونَ","english":"The Messenger has believed in what was revealed to him from his Lord, and so have the believers."}
]`

// Chapter112 is Al-Ikhlas. The last verse has a null translation.
const Chapter112 = `[
  {"ref":"112:1","surah":112,"ayah":1,"arabic":"قُلْ هُوَ اللَّهُ أَحَدٌ","english":"Say, \"He is Allah, [who is] One,"},
  {"ref":"112:2","surah":112,"ayah":2,"arabic":"اللَّهُ الصَّمَدُ","english":"Allah, the Eternal Refuge."},
  {"ref":"112:3","surah":112,"ayah":3,"arabic":"لَمْ يَلِدْ وَلَمْ يُولَدْ","english":"He neither begets nor is born,"},
  {"ref":"112:4","surah":112,"ayah":4,"arabic":"وَلَمْ يَكُن لَّهُ كُفُوًا أَحَدٌ","english":null}
]`

// ThemeIndex is the inverse theme index. Key order is significant.
const ThemeIndex = `{
  "Mercy": ["1:1", "1:3", "2:143"],
  "Belief": ["2:3", "2:285", "2:8"],
  "Oneness of God": ["112:1", "112:4", "2:255"],
  "Worship": ["1:5"],
  "Day of Judgement": ["1:4"],
  "Merciful Names": ["1:3"]
}`

// ChapterIndex is the chapter metadata index.
const ChapterIndex = `[
  {"id":1,"name":"الفاتحة","transliteration":"Al-Fatihah","translation":"The Opener","type":"meccan","ayahCount":7},
  {"id":2,"name":"البقرة","transliteration":"Al-Baqarah","translation":"The Cow","type":"medinan","ayahCount":286},
  {"id":112,"name":"الإخلاص","transliteration":"Al-Ikhlas","translation":"Sincerity","type":"meccan","ayahCount":4}
]`

// Files returns the fixture resources keyed by path.
func Files() map[string][]byte {
	return map[string][]byte{
		corpus.ChapterPath(1):   []byte(Chapter1),
		corpus.ChapterPath(2):   []byte(Chapter2),
		corpus.ChapterPath(112): []byte(Chapter112),

		corpus.ChapterThemesPath(1): []byte(`[
  {"ref":"1:1","themes":["Mercy"]},
  {"ref":"1:3","themes":["Mercy","Merciful Names"]},
  {"ref":"1:4","themes":["Day of Judgement"]},
  {"ref":"1:5","themes":["Worship"]}
]`),
		corpus.ChapterThemesPath(2): []byte(`[
  {"ref":"2:3","themes":["Belief"]},
  {"ref":"2:8","themes":["Belief"]},
  {"ref":"2:143","themes":["Mercy"]},
  {"ref":"2:255","themes":["Oneness of God"]},
  {"ref":"2:285","themes":["Belief"]}
]`),

		corpus.ThemeIndexPath:   []byte(ThemeIndex),
		corpus.ChapterIndexPath: []byte(ChapterIndex),

		"tafsir/1.json": []byte(`{"ayahs":[
  {"surah":1,"ayah":1,"html":"<p>The <strong>basmalah</strong> opens every chapter but one.</p>"},
  {"surah":1,"ayah":2,"text":"Praise belongs to Allah.\nHe is Lord of all that exists."},
  {"surah":1,"ayah":3,"text":"   "}
]}`),
		"tafsir/002/index.json": []byte(`{"ayahs":[
  {"surah":2,"ayah":255,"html":"<p>This is the greatest verse.</p>"}
]}`),
		"tafsir/en-tafsir-ibn-kathir/112/1.json": []byte(`{"text":"Say: He is Allah, the One."}`),
	}
}

// NewSource returns a fresh in-memory source holding the fixture.
func NewSource() *corpus.MapSource {
	return corpus.NewMapSource(Files())
}

// WriteDir writes the fixture below dir. When compress is set every file is
// written xz-compressed with an ".xz" suffix.
func WriteDir(tb testing.TB, dir string, compress bool) {
	tb.Helper()
	for p, data := range Files() {
		name := filepath.Join(dir, filepath.FromSlash(p))
		if compress {
			packed, err := corpus.Compress(data)
			if err != nil {
				tb.Fatalf("compress %s: %v", p, err)
			}
			data = packed
			name += ".xz"
		}
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			tb.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(name, data, 0o644); err != nil {
			tb.Fatalf("write %s: %v", p, err)
		}
	}
}
