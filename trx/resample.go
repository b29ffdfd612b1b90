package trx

// NewResampler returns a streaming resampler that converts a PCM stream from
// sourceRate to targetRate using linear interpolation.
func NewResampler(sourceRate int, targetRate int) *Resampler {
	return &Resampler{ratio: float64(sourceRate) / float64(targetRate)}
}

// Resampler converts a PCM stream between two fixed sample rates. The
// fractional phase and the last source sample persist across calls, so an
// arbitrarily chunked input stream produces the same output as a single
// contiguous call. It never looks ahead more than one source sample.
type Resampler struct {
	ratio  float64
	phase  float64
	last   float64
	primed bool
}

// Reset discards the phase state, the next pushed sample starts a fresh
// stream.
func (r *Resampler) Reset() {
	r.phase = 0
	r.last = 0
	r.primed = false
}

// Push consumes the given source samples and appends the resulting target
// samples to out. An empty input is a no-op.
func (r *Resampler) Push(in []float64, out []float64) []float64 {
	if len(in) == 0 {
		return out
	}
	if !r.primed {
		r.last = in[0]
		r.primed = true
	}
	for _, sample := range in {
		for r.phase < 1 {
			out = append(out, r.last+(sample-r.last)*r.phase)
			r.phase += r.ratio
		}
		r.phase--
		r.last = sample
	}
	return out
}

// NewBridge returns a sample rate bridge for both directions of the
// single-cable transport.
func NewBridge() *Bridge {
	return &Bridge{
		decode: NewResampler(DeviceRXRate, InternalRate),
		encode: NewResampler(InternalRate, DeviceTXRate),
	}
}

// Bridge converts between the device's 8-bit PCM sample streams and the
// modem's float PCM stream at the internal rate. It holds one resampler per
// direction, each direction is owned by exactly one goroutine.
type Bridge struct {
	decode *Resampler
	encode *Resampler

	decodeIn  []float64
	decodeOut []float64
	encodeIn  []float64
	encodeOut []float64
}

// Reset zeroes the phase state of both directions.
func (b *Bridge) Reset() {
	b.decode.Reset()
	b.encode.Reset()
}

// DecodePush converts receive audio from the device (unsigned 8-bit PCM at
// DeviceRXRate) to modem audio (float PCM at InternalRate).
func (b *Bridge) DecodePush(in []byte) []float32 {
	b.decodeIn = b.decodeIn[:0]
	for _, sample := range in {
		b.decodeIn = append(b.decodeIn, (float64(sample)-128)/128)
	}
	b.decodeOut = b.decode.Push(b.decodeIn, b.decodeOut[:0])

	result := make([]float32, len(b.decodeOut))
	for i, sample := range b.decodeOut {
		result[i] = float32(sample)
	}
	return result
}

// EncodePush converts transmit audio from the modem (float PCM at
// InternalRate) to device audio (unsigned 8-bit PCM at DeviceTXRate). The
// result does not yet avoid the delimiter byte, that happens when the samples
// go out on the wire.
func (b *Bridge) EncodePush(in []float32) []byte {
	b.encodeIn = b.encodeIn[:0]
	for _, sample := range in {
		b.encodeIn = append(b.encodeIn, float64(sample))
	}
	b.encodeOut = b.encode.Push(b.encodeIn, b.encodeOut[:0])

	result := make([]byte, len(b.encodeOut))
	for i, sample := range b.encodeOut {
		switch {
		case sample > 1:
			sample = 1
		case sample < -1:
			sample = -1
		}
		result[i] = byte(128 + sample*127)
	}
	return result
}

// Silence returns count samples of device-side silence, the mid-scale value.
func Silence(count int) []byte {
	result := make([]byte, count)
	for i := range result {
		result[i] = 128
	}
	return result
}
