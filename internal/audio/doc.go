// Package audio plays synthesized speech through oto and converts clips
// between WAV, MP3 and raw PCM with beep.
package audio
