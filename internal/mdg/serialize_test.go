package mdg

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/require"
)

// bumpMinorForTest decodes a serialized graph and re-encodes it with the
// minor version incremented, to exercise Deserialize's version check
// without hand-crafting the wire format.
func bumpMinorForTest(t *testing.T, data []byte) []byte {
	t.Helper()
	var wg wireGraph
	require.NoError(t, gob.NewDecoder(bytes.NewReader(data)).Decode(&wg))
	wg.Minor++

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(wg))
	return buf.Bytes()
}
