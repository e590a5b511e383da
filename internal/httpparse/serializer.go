package httpparse

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/megakuul/gosimplehttp/internal/message"
)

// Serialize writes the status line, headers (skipping empty values) and
// body of resp into a fresh byte slice. One-shot: there is no resumable
// counterpart, the whole response is always available at once.
//
// Headers are emitted in sorted key order. The wire grammar does not care
// about header order; sorting just keeps serialized output byte-for-byte
// reproducible for tests.
func Serialize(resp *message.Response) []byte {
	var out bytes.Buffer
	fmt.Fprintf(&out, "%s %d %s\r\n", resp.Version, resp.Code, resp.Reason)

	keys := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := resp.Headers[k]
		if v == "" {
			continue
		}
		fmt.Fprintf(&out, "%s: %s\r\n", k, v)
	}
	out.WriteString("\r\n")
	out.Write(resp.Body)
	return out.Bytes()
}
