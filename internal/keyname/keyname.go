// Package keyname encodes and decodes stored object names.
//
// A stored name carries the logical filename, the backup timestamp and the
// encryption marker: "<name>.<YYYYMMDDHHMMSS>.tgz[.enc]". Older archives were
// written without the dot separating the name from the timestamp, so decoding
// falls back to that legacy grammar before giving up.
package keyname

import (
	"fmt"
	"regexp"
	"time"
)

// TimestampLayout is the date component format, always UTC.
const TimestampLayout = "20060102150405"

var (
	canonicalRe = regexp.MustCompile(`^(?P<name>.+)\.(?P<ts>\d{14})\.tgz(?P<enc>\.enc)?$`)

	// Legacy grammar without the dot before the date component, tried only
	// if the canonical grammar fails.
	legacyRe = regexp.MustCompile(`^(?P<name>.+)(?P<ts>\d{14})\.tgz(?P<enc>\.enc)?$`)
)

// Key is a decoded stored name.
type Key struct {
	Name      string
	Time      time.Time
	Encrypted bool
}

// Encode builds the canonical stored name for a backup.
func Encode(name string, ts time.Time, encrypted bool) string {
	key := fmt.Sprintf("%s.%s.tgz", name, ts.UTC().Format(TimestampLayout))
	if encrypted {
		key += ".enc"
	}
	return key
}

// Decode parses a stored name, trying the canonical grammar first and the
// legacy grammar second. It reports false when neither matches.
func Decode(key string) (Key, bool) {
	m := canonicalRe.FindStringSubmatch(key)
	if m == nil {
		m = legacyRe.FindStringSubmatch(key)
	}
	if m == nil {
		return Key{}, false
	}

	ts, err := time.ParseInLocation(TimestampLayout, m[2], time.UTC)
	if err != nil {
		return Key{}, false
	}

	return Key{Name: m[1], Time: ts, Encrypted: m[3] != ""}, true
}

// DecodeLenient decodes like Decode but never fails: a name matching neither
// grammar is treated as an opaque legacy key with a zero timestamp and no
// encryption. Such keys do not round-trip through Encode.
func DecodeLenient(key string) Key {
	if k, ok := Decode(key); ok {
		return k
	}
	return Key{Name: key, Time: time.Unix(0, 0).UTC()}
}
