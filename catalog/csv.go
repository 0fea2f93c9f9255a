package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
)

// ReadCSV reads maps from a CSV export with a header row. Columns are
// located by name; rows whose ID or layout ID do not parse are skipped.
func ReadCSV(r io.Reader, logger *slog.Logger) ([]Map, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("minimaps: empty catalog")
	}
	if err != nil {
		return nil, err
	}

	columns := make(map[string]int)
	for i, name := range header {
		columns[name] = i
	}
	for _, name := range []string{columnID, columnName, columnLayoutID} {
		if _, found := columns[name]; !found {
			return nil, fmt.Errorf("minimaps: catalog column %q not found", name)
		}
	}

	maps := make([]Map, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		m, err := parseRecord(record, columns)
		if err != nil {
			logger.Warn("minimaps: skipping catalog record", "line", line, "error", err)
			continue
		}
		maps = append(maps, m)
	}

	return maps, nil
}

func parseRecord(record []string, columns map[string]int) (Map, error) {
	field := func(name string) (string, error) {
		i := columns[name]
		if i >= len(record) {
			return "", fmt.Errorf("%w: missing %v", errInvalidRecord, name)
		}
		return record[i], nil
	}
	number := func(name string) (uint32, error) {
		value, err := field(name)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %v: %w", errInvalidRecord, name, err)
		}
		return uint32(n), nil
	}

	id, err := number(columnID)
	if err != nil {
		return Map{}, err
	}
	layoutID, err := number(columnLayoutID)
	if err != nil {
		return Map{}, err
	}
	name, err := field(columnName)
	if err != nil {
		return Map{}, err
	}
	return Map{ID: id, Name: name, LayoutID: layoutID}, nil
}
