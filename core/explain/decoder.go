package explain

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Heartbeat is the zero-width space the service sends first to open the
// stream. One leading heartbeat is dropped from the decoded text.
const Heartbeat = "\u200b"

// Decoder turns a byte stream into text chunk by chunk. A multi-byte
// sequence split across chunks is held back until it is complete;
// ill-formed bytes decode to U+FFFD.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	started bool
}

// NewDecoder creates a Decoder for a UTF-8 stream.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode consumes p and returns the text it completes.
func (d *Decoder) Decode(p []byte) string {
	src := append(d.pending, p...)
	out, n := d.run(src, false)
	d.pending = append([]byte(nil), src[n:]...)
	return d.strip(out)
}

// Flush returns whatever is left at end of stream.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out, _ := d.run(d.pending, true)
	d.pending = nil
	return d.strip(out)
}

func (d *Decoder) run(src []byte, atEOF bool) (string, int) {
	var sb strings.Builder
	// Every ill-formed byte may expand to a 3-byte replacement character.
	dst := make([]byte, 3*len(src)+4)
	consumed := 0
	for {
		nDst, nSrc, err := d.t.Transform(dst, src[consumed:], atEOF)
		sb.Write(dst[:nDst])
		consumed += nSrc
		if err != transform.ErrShortDst || (nDst == 0 && nSrc == 0) {
			break
		}
	}
	return sb.String(), consumed
}

func (d *Decoder) strip(s string) string {
	if d.started || s == "" {
		return s
	}
	d.started = true
	return strings.TrimPrefix(s, Heartbeat)
}
