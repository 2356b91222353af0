package registry

import (
	"crypto/sha1"
	"encoding/binary"
	"math"
)

// The dial: 87.0 through 108.0 MHz in 0.1 steps, 211 discrete slots.
const (
	FreqMin  = 87.0
	FreqMax  = 108.0
	FreqStep = 0.1
)

var freqSlots = int(math.Round((FreqMax-FreqMin)/FreqStep)) + 1

// AssignFrequency picks a pseudo-frequency for a room. The room id hashes
// to a stable starting slot (SHA-1 keeps assignments identical across
// restarts and across deployments), then probes forward around the dial
// until it finds a slot no *other* room holds. A full dial of collisions
// falls back to the bottom of the band.
func AssignFrequency(roomID string, used map[float64]string) float64 {
	digest := sha1.Sum([]byte(roomID))
	index := int(binary.BigEndian.Uint32(digest[:4]) % uint32(freqSlots))
	for offset := 0; offset < freqSlots; offset++ {
		freq := roundFreq(FreqMin + float64((index+offset)%freqSlots)*FreqStep)
		holder, taken := used[freq]
		if !taken || holder == roomID {
			return freq
		}
	}
	return roundFreq(FreqMin)
}

// roundFreq clamps a dial value to one decimal place so map keys and
// persisted values compare exactly.
func roundFreq(f float64) float64 {
	return math.Round(f*10) / 10
}
