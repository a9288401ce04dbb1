package recorder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
)

// lastMaxSpread reads the final record of the max-spread log. A missing or
// empty file yields ok=false with a nil error; an unparseable last line yields
// ok=false with the parse error.
func lastMaxSpread(path string) (maxSpreadLine, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return maxSpreadLine{}, false, nil
	}
	if err != nil {
		return maxSpreadLine{}, false, fmt.Errorf("recorder: read %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return maxSpreadLine{}, false, nil
	}
	last := data
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		last = bytes.TrimSpace(data[i+1:])
	}

	var line maxSpreadLine
	if err := json.Unmarshal(last, &line); err != nil {
		return maxSpreadLine{}, false, fmt.Errorf("recorder: parse last record: %w", err)
	}
	if math.IsNaN(line.Spread) || math.IsInf(line.Spread, 0) {
		return maxSpreadLine{}, false, fmt.Errorf("recorder: last record spread %v is not finite", line.Spread)
	}
	return line, true, nil
}

// sealTail appends a newline when the file's last byte is not one, so the next
// append starts on a fresh line after a torn write.
func sealTail(f *os.File) error {
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		return nil
	}
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, st.Size()-1); err != nil {
		return err
	}
	if buf[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}
