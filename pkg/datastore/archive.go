package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"specstore/internal/blob"
	"specstore/pkg/query"
)

// ArchiveSink aliases the blob sink surface so callers can archive snapshots
// without reaching into the internal tree.
type ArchiveSink = blob.Store

// OpenArchive selects an archive sink using environment variables
// (SPECSTORE_ARCHIVE_DRIVER and friends; see the blob package).
func OpenArchive(ctx context.Context) (ArchiveSink, error) {
	return blob.OpenFromEnv(ctx)
}

const archiveContentType = "application/json"

// ExportSnapshotTo archives the store's committed state, one JSON object per
// entity set, under the given key prefix.
func ExportSnapshotTo(ctx context.Context, st Store, sink ArchiveSink, prefix string) error {
	snapshot := st.ExportState()
	for set, rows := range snapshot {
		payload, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("encode %s: %w", set, err)
		}
		if err := sink.Put(ctx, archiveKey(prefix, set), payload, archiveContentType); err != nil {
			return fmt.Errorf("archive %s: %w", set, err)
		}
	}
	return nil
}

// ImportSnapshotFrom hydrates the store from an archive written by
// ExportSnapshotTo, replacing the committed state.
func ImportSnapshotFrom(ctx context.Context, st Store, sink ArchiveSink, prefix string) error {
	keys, err := sink.List(ctx, keyPrefix(prefix))
	if err != nil {
		return fmt.Errorf("list archive: %w", err)
	}
	snapshot := query.Snapshot{}
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		payload, err := sink.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		var rows map[string]json.RawMessage
		if err := json.Unmarshal(payload, &rows); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		snapshot[strings.TrimSuffix(path.Base(key), ".json")] = rows
	}
	st.ImportState(snapshot)
	return nil
}

// ExportArchive is ExportSnapshotTo against the environment-selected sink.
func ExportArchive(ctx context.Context, st Store, prefix string) error {
	sink, err := blob.OpenFromEnv(ctx)
	if err != nil {
		return err
	}
	return ExportSnapshotTo(ctx, st, sink, prefix)
}

func archiveKey(prefix, set string) string {
	if prefix == "" {
		return set + ".json"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + set + ".json"
}

func keyPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimSuffix(prefix, "/") + "/"
}
