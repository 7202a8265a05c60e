package app

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/io/transport"
)

// VersionReplyLen is the payload length of a GetVersion reply.
const VersionReplyLen = 9

var targetIDs = map[content.Target]uint32{
	content.TargetNanoS: 0x31100004,
	content.TargetNanoX: 0x33000004,
}

// getVersion replies [debug, major, minor, patch, locked, targetID(4)].
func (a *App) getVersion(cmd apdu.Command) (int, transport.Flags, error) {
	out := cmd.Out()
	if len(out) < VersionReplyLen+2 {
		return 0, 0, fault(apdu.OutputBufferTooSmall)
	}

	out[0] = 0
	copy(out[1:4], a.version[:])
	out[4] = 0
	binary.BigEndian.PutUint32(out[5:9], targetIDs[a.target])

	return VersionReplyLen, 0, nil
}

// parseVersion reads "major.minor.patch". Missing or malformed parts are zero.
func parseVersion(v string) [3]byte {
	var out [3]byte
	for i, part := range strings.SplitN(strings.TrimPrefix(v, "v"), ".", 3) {
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			continue
		}
		out[i] = byte(n)
	}
	return out
}
