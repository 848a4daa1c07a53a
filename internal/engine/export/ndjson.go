package export

import (
	"encoding/json"
	"io"

	"github.com/ulikunitz/xz"
)

// writeNDJSONXZ writes one JSON object per line into an xz stream.
func writeNDJSONXZ[T any](w io.Writer, rows []T) error {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(zw)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}
