package audio

// ResamplerState carries the fractional sample position of a resampling
// stream across chunk boundaries. The zero value is the correct starting
// state for a new stream.
//
// Position is tracked as an integer numerator over dstRate, so the
// fractional position carries exactly across chunk boundaries: there is no
// floating-point accumulation in the position itself, only in the
// per-sample interpolation weight. When every output position lands on a
// whole source sample (as for 16 kHz to 8 kHz), splitting a buffer into
// arbitrary chunks gives output bit-identical to resampling it in one call.
// For other ratios, an output position that falls between a chunk's last
// sample and the next chunk's first is taken from that last sample alone,
// so chunked output can differ from unchunked output there.
type ResamplerState struct {
	carry int64
}

// Resample converts samples from srcRate to dstRate using linear
// interpolation, threading the fractional position across calls (see
// ResamplerState for when chunked output matches unchunked output exactly).
// If srcRate == dstRate the input is
// returned unchanged and state passes through untouched.
func Resample(samples []float32, srcRate, dstRate int, state ResamplerState) ([]float32, ResamplerState) {
	if srcRate == dstRate {
		return samples, state
	}

	ratioNum := int64(srcRate)
	denom := int64(dstRate)
	n := int64(len(samples))

	var out []float32
	pos := state.carry
	for pos < n*denom {
		idx := pos / denom
		rem := pos % denom
		frac := float32(rem) / float32(denom)
		out = append(out, interpolate(samples, int(idx), frac))
		pos += ratioNum
	}

	return out, ResamplerState{carry: pos - n*denom}
}

func interpolate(samples []float32, idx int, frac float32) float32 {
	if idx+1 >= len(samples) {
		return samples[idx]
	}
	return samples[idx]*(1-frac) + samples[idx+1]*frac
}
