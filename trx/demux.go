package trx

// DemuxSink receives the classified output of the Demux: complete CAT frames,
// single audio samples, and the end of each audio run.
type DemuxSink interface {
	CatFrame(frame []byte)
	AudioSample(sample byte)
	AudioRunEnd()
}

type demuxState int

const (
	demuxCat demuxState = iota
	demuxDelimiter
	demuxDelimiterU
	demuxAudio
)

// NewDemux returns a demultiplexer that reports to the given sink.
func NewDemux(sink DemuxSink) *Demux {
	return &Demux{sink: sink}
}

// Demux separates the single incoming byte stream of the transceiver into CAT
// command frames and raw audio sample runs. CAT frames are ASCII terminated
// by the delimiter byte, audio runs are introduced by the sequence ";US" and
// terminated by the next delimiter. The demultiplexer is a pure state machine
// over one byte at a time, feeding a stream byte by byte or in arbitrary
// chunks yields the same output.
type Demux struct {
	sink  DemuxSink
	state demuxState
	frame []byte
}

// Reset discards any partially accumulated frame and returns the
// demultiplexer to its initial state.
func (d *Demux) Reset() {
	d.state = demuxCat
	d.frame = d.frame[:0]
}

// FeedAll feeds the given bytes one by one.
func (d *Demux) FeedAll(bytes []byte) {
	for _, b := range bytes {
		d.Feed(b)
	}
}

// Feed processes a single incoming byte. There is no illegal input, every
// byte sequence drives the state machine somewhere; frames that make no sense
// as CAT commands are rejected later by the codec.
func (d *Demux) Feed(b byte) {
	switch d.state {
	case demuxCat:
		if b != Delimiter {
			d.frame = append(d.frame, b)
			return
		}
		if len(d.frame) > 0 {
			d.sink.CatFrame(d.frame)
			d.frame = d.frame[:0]
		}
		d.state = demuxDelimiter
	case demuxDelimiter:
		if b == 'U' {
			// may be the start of an audio run, hold it back
			d.state = demuxDelimiterU
			return
		}
		d.state = demuxCat
		d.Feed(b)
	case demuxDelimiterU:
		if b == 'S' {
			d.state = demuxAudio
			return
		}
		// not an audio run after all, the held 'U' belongs to a CAT frame
		d.state = demuxCat
		d.frame = append(d.frame, 'U')
		d.Feed(b)
	case demuxAudio:
		if b != Delimiter {
			d.sink.AudioSample(b)
			return
		}
		d.sink.AudioRunEnd()
		d.state = demuxDelimiter
	}
}
