package store

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"assetguard/internal/extract"
	"assetguard/internal/fsutil"
)

// LoadState reads the optimization document at path. A missing file is an
// empty store.
func LoadState(path string) (State, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{Version: StateVersion}, nil
		}
		return State{}, err
	}
	var st State
	if err := toml.Unmarshal(blob, &st); err != nil {
		return State{}, fmt.Errorf("OPT_STATE_PARSE: %w", err)
	}
	if st.Version == 0 {
		st.Version = StateVersion
	}
	if st.Version != StateVersion {
		return State{}, fmt.Errorf("OPT_STATE_VERSION: unsupported state version %d", st.Version)
	}
	ids := map[string]struct{}{}
	keys := map[recordKey]struct{}{}
	for _, r := range st.Records {
		if r.ID == "" || r.Handle == "" {
			return State{}, fmt.Errorf("OPT_STATE_SCHEMA: record missing id or handle")
		}
		if _, err := extract.ParseKind(string(r.Kind)); err != nil {
			return State{}, fmt.Errorf("OPT_STATE_SCHEMA: record %q: %w", r.ID, err)
		}
		if _, ok := ids[r.ID]; ok {
			return State{}, fmt.Errorf("OPT_STATE_SCHEMA: duplicate record id %q", r.ID)
		}
		ids[r.ID] = struct{}{}
		if _, ok := keys[keyOf(r)]; ok {
			return State{}, fmt.Errorf("OPT_STATE_SCHEMA: duplicate record for %s:%s", r.Kind, r.Handle)
		}
		keys[keyOf(r)] = struct{}{}
	}
	return st, nil
}

// SaveState writes st to path. Records keep their insertion order on disk.
func SaveState(path string, st State) error {
	st.Version = StateVersion
	blob, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("OPT_STATE_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(path, blob, 0o644)
}
