package filterindex

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Serialize encodes the whole index as one line per (field, value) bitmap:
// "field|value|<base64 roaring bitmap bytes>\n", matching the on-disk
// layout spec.md §4.3 describes.
func (fi *Index) Serialize() ([]byte, error) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	var buf bytes.Buffer
	for field, values := range fi.fields {
		for value, bm := range values {
			raw, err := bm.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("serialize bitmap %s=%d: %w", field, value, err)
			}
			fmt.Fprintf(&buf, "%s|%d|%s\n", field, value, base64.StdEncoding.EncodeToString(raw))
		}
	}
	return buf.Bytes(), nil
}

// LoadFrom replaces fi's contents in place with the index encoded in data,
// as produced by Serialize. Used to restore C3 from its snapshot blob onto
// the same *Index instance the rest of the node already holds a reference
// to (spec.md §4.5 take_snapshot/load_snapshot).
func (fi *Index) LoadFrom(data []byte) error {
	restored, err := Deserialize(data)
	if err != nil {
		return err
	}
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.fields = restored.fields
	return nil
}

// Deserialize reconstructs the field→value→bitmap map from bytes produced
// by Serialize, replacing any existing contents.
func Deserialize(data []byte) (*Index, error) {
	fi := New()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	// Bitmap payloads can be large; grow the scanner's buffer accordingly.
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed filter index line: %q", line)
		}
		field := parts[0]
		value, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed filter index value in %q: %w", line, err)
		}
		raw, err := base64.StdEncoding.DecodeString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("malformed filter index bitmap in %q: %w", line, err)
		}
		bm := roaring64.New()
		if err := bm.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("unmarshal bitmap %s=%d: %w", field, value, err)
		}
		if _, ok := fi.fields[field]; !ok {
			fi.fields[field] = make(map[int64]*roaring64.Bitmap)
		}
		fi.fields[field][value] = bm
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan filter index: %w", err)
	}
	return fi, nil
}
