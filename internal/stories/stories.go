// Package stories is the stand-in for the LLM sidecar: canned one-line
// stories per mood, picked deterministically per UTC day so every
// listener in a room hears the same line.
package stories

import (
	"hash/fnv"
	"time"
)

var storyBank = map[string][]string{
	"focus": {
		"The algorithms are aligning perfectly tonight.",
		"Your focus is reshaping the digital landscape.",
		"Silence is the loudest frequency in the network.",
		"Compiling thoughts into pure crystal data.",
	},
	"rain": {
		"Each drop carries a memory of the ocean.",
		"The cave walls whisper ancient binary code.",
		"Storm systems approaching the outer perimeter.",
		"Humidity levels rising. Systems nominal.",
	},
	"arcade": {
		"High score detected in the neural lace.",
		"Neon lights flickering in sync with your heartbeat.",
		"Insert coin to continue the simulation.",
		"Pixels bleeding into reality.",
	},
	"sleep": {
		"Leaving orbit. Engaging hyper-sleep.",
		"The stars look different from this angle.",
		"Life support systems: calibrated for dreams.",
		"Drifting through the void of silence.",
	},
}

// Seed is the shared daily seed: the UTC date. Clients use it to keep
// procedural audio in sync without a realtime channel.
func Seed(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// Moods lists the known story moods.
func Moods() []string {
	return []string{"arcade", "focus", "rain", "sleep"}
}

// Pick returns the day's line for a mood. Unknown moods fall back to
// focus. The pick is stable for a given mood and day.
func Pick(mood string, now time.Time) string {
	lines, ok := storyBank[mood]
	if !ok {
		lines = storyBank["focus"]
	}
	h := fnv.New32a()
	h.Write([]byte(Seed(now) + "|" + mood))
	return lines[h.Sum32()%uint32(len(lines))]
}
