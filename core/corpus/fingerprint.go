package corpus

import (
	"context"
	"encoding/hex"

	"github.com/zeebo/blake3"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// Digest is the BLAKE3 hash of one resource.
type Digest struct {
	Path   string `json:"path"`
	BLAKE3 string `json:"blake3"`
	Size   int    `json:"size"`
}

// Manifest summarises a data root: one digest per present resource and a
// combined digest over all of them in path order.
type Manifest struct {
	Resources []Digest `json:"resources"`
	Missing   []string `json:"missing,omitempty"`
	Combined  string   `json:"combined"`
}

// Hash returns the hex BLAKE3-256 of data.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes every path from src. Missing resources are listed in
// Missing rather than failing; any other error aborts.
func Fingerprint(ctx context.Context, src Source, paths []string) (Manifest, error) {
	var m Manifest
	combined := blake3.New()

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return Manifest{}, err
		}
		data, err := src.Open(ctx, p)
		if qerrors.IsNotFound(err) {
			m.Missing = append(m.Missing, p)
			continue
		}
		if err != nil {
			return Manifest{}, qerrors.Wrapf(err, "fingerprint %s", p)
		}

		d := Digest{Path: p, BLAKE3: Hash(data), Size: len(data)}
		m.Resources = append(m.Resources, d)

		_, _ = combined.Write([]byte(d.Path))
		_, _ = combined.Write([]byte{0})
		_, _ = combined.Write([]byte(d.BLAKE3))
		_, _ = combined.Write([]byte{'\n'})
	}

	m.Combined = hex.EncodeToString(combined.Sum(nil))
	return m, nil
}
