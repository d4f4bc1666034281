package live

import (
	"math"
)

// EncodeFrame quantizes float32 samples in [-1, 1] to signed 16-bit
// little-endian PCM, packed densely with no header. Out-of-range samples
// are clamped.
func EncodeFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767.0)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DecodeFrame converts 16-bit little-endian PCM bytes back to float32
// samples. An odd byte count is the only failure mode and yields a
// format error.
func DecodeFrame(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, NewFormatError("pcm frame must have an even byte count")
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out, nil
}

// MeanAbsAmplitude returns the mean absolute amplitude of the samples,
// the activity signal used by the capture pipeline.
func MeanAbsAmplitude(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += math.Abs(float64(v))
	}
	return sum / float64(len(samples))
}

// RMSEnergy computes the root-mean-square energy of 16-bit signed
// little-endian PCM. Returns a value between 0.0 and 1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(s) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}
