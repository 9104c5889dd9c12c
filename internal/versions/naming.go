package versions

import (
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Snapshot file naming: <prefix><YYYYMMDD_HHMMSS>[_<seq>].csv
const (
	savePrefix      = "data_"
	backupPrefix    = "pre_restore_"
	timestampLayout = "20060102_150405"
	snapshotExt     = ".csv"
)

// maxNameAttempts bounds the collision suffix search within one second.
const maxNameAttempts = 1000

var kindPrefixes = map[types.SnapshotKind]string{
	types.SnapshotSave:   savePrefix,
	types.SnapshotBackup: backupPrefix,
}

// snapshotName builds the name for a snapshot of kind taken at t. A seq
// above zero disambiguates snapshots created within the same second.
func snapshotName(kind types.SnapshotKind, t time.Time, seq int) string {
	name := kindPrefixes[kind] + t.Format(timestampLayout)
	if seq > 0 {
		name += "_" + strconv.Itoa(seq)
	}
	return name + snapshotExt
}

// parseSnapshotName recovers kind, timestamp and sequence from a name built
// by snapshotName. ok is false for any other name.
func parseSnapshotName(name string) (kind types.SnapshotKind, created time.Time, seq int, ok bool) {
	rest, found := strings.CutSuffix(name, snapshotExt)
	if !found {
		return types.SnapshotUnknown, time.Time{}, 0, false
	}
	switch {
	case strings.HasPrefix(rest, backupPrefix):
		kind, rest = types.SnapshotBackup, rest[len(backupPrefix):]
	case strings.HasPrefix(rest, savePrefix):
		kind, rest = types.SnapshotSave, rest[len(savePrefix):]
	default:
		return types.SnapshotUnknown, time.Time{}, 0, false
	}
	if len(rest) < len(timestampLayout) {
		return types.SnapshotUnknown, time.Time{}, 0, false
	}
	created, err := time.ParseInLocation(timestampLayout, rest[:len(timestampLayout)], time.Local)
	if err != nil {
		return types.SnapshotUnknown, time.Time{}, 0, false
	}
	if suffix := rest[len(timestampLayout):]; suffix != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(suffix, "_"))
		if !strings.HasPrefix(suffix, "_") || err != nil || n <= 0 {
			return types.SnapshotUnknown, time.Time{}, 0, false
		}
		seq = n
	}
	return kind, created, seq, true
}

// describe turns a backend listing entry into a Snapshot. Names that do not
// parse fall back to the backend modification time.
func describe(info types.SnapshotInfo) types.Snapshot {
	snap := types.Snapshot{ID: info.Name, SizeBytes: info.Size}
	kind, created, seq, ok := parseSnapshotName(info.Name)
	if !ok {
		snap.Kind = types.SnapshotUnknown
		snap.CreatedAt = info.ModTime.Truncate(time.Second)
		return snap
	}
	snap.Kind, snap.CreatedAt, snap.Seq = kind, created, seq
	return snap
}
