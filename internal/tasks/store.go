package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"smartassist/internal/fileutil"
)

// HistoryFile is the name of the persisted task history inside the runtime
// directory.
const HistoryFile = "history.json"

// LoadHistory reads persisted task records. A missing file yields no records.
func LoadHistory(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task history: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse task history %s: %w", path, err)
	}
	return records, nil
}

// AppendHistory appends the finished records to the history file at path,
// keeping at most limit records (all when limit <= 0). Records that are still
// pending or running are skipped. Writers in other processes are excluded
// with a lock file.
func AppendHistory(path string, records []Record, limit int) error {
	records = slices.DeleteFunc(slices.Clone(records), func(rec Record) bool {
		return !rec.Status.IsTerminal()
	})
	if len(records) == 0 {
		return nil
	}

	err := fileutil.LockedUpdate(path, 0o600, func(current []byte) ([]byte, error) {
		var all []Record
		if len(current) > 0 {
			if err := json.Unmarshal(current, &all); err != nil {
				return nil, fmt.Errorf("parse task history %s: %w", path, err)
			}
		}
		all = append(all, records...)
		if limit > 0 && len(all) > limit {
			all = all[len(all)-limit:]
		}
		return json.MarshalIndent(all, "", "  ")
	})
	if err != nil {
		return fmt.Errorf("save task history: %w", err)
	}
	return nil
}
