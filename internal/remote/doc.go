package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Apply writes value at sub inside doc and returns the new document. A nil
// value deletes; a nil result means the document no longer exists.
func Apply(doc []byte, sub string, value any) ([]byte, error) {
	if sub == "" {
		if value == nil {
			return nil, nil
		}
		return json.Marshal(value)
	}
	if value == nil {
		if len(doc) == 0 {
			return nil, nil
		}
		out, err := sjson.DeleteBytes(doc, jsonPath(sub, true))
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", sub, err)
		}
		if isEmptyObject(out) {
			return nil, nil
		}
		return out, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", sub, err)
	}
	base := []byte("{}")
	if len(doc) > 0 {
		base = append([]byte(nil), doc...)
	}
	out, err := sjson.SetRawBytes(base, jsonPath(sub, true), raw)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", sub, err)
	}
	return out, nil
}

// ValueAt reads the raw JSON at sub inside doc.
func ValueAt(doc []byte, sub string) ([]byte, bool) {
	if len(doc) == 0 {
		return nil, false
	}
	if sub == "" {
		return doc, true
	}
	r := gjson.GetBytes(doc, jsonPath(sub, false))
	if !r.Exists() {
		return nil, false
	}
	return []byte(r.Raw), true
}

// JoinCollection renders documents keyed by id as one JSON object.
func JoinCollection(docs map[string][]byte) ([]byte, error) {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []byte("{}")
	for _, id := range ids {
		var err error
		out, err = sjson.SetRawBytes(out, jsonPath(id, true), docs[id])
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", id, err)
		}
	}
	return out, nil
}

// jsonPath turns "messages/m1/content" into a gjson/sjson path. With
// forceKeys, all-digit segments are marked as object keys so sjson does
// not create arrays for them.
func jsonPath(sub string, forceKeys bool) string {
	segs := strings.Split(strings.Trim(sub, "/"), "/")
	for i, s := range segs {
		s = escapeSegment(s)
		if forceKeys && isDigits(s) {
			s = ":" + s
		}
		segs[i] = s
	}
	return strings.Join(segs, ".")
}

func escapeSegment(s string) string {
	if !strings.ContainsAny(s, `.*?|#@\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`.*?|#@\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isEmptyObject(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("{}"))
}

// Op is one write inside a document.
type Op struct {
	Sub   string
	Value any
}

// DocWrite collects the ops an update applies to one document.
type DocWrite struct {
	Collection string
	ID         string
	Ops        []Op
}

// Key returns the document key.
func (w DocWrite) Key() string { return DocKey(w.Collection, w.ID) }

// Apply runs every op against doc in order.
func (w DocWrite) Apply(doc []byte) ([]byte, error) {
	var err error
	for _, op := range w.Ops {
		doc, err = Apply(doc, op.Sub, op.Value)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Plan groups a multi-path update by document. Within a document, shallower
// paths are applied before deeper ones so a replaced parent does not erase
// a child written in the same update.
func Plan(values map[string]any) ([]DocWrite, error) {
	byKey := make(map[string]*DocWrite)
	for path, v := range values {
		coll, id, sub, err := Split(path)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, fmt.Errorf("%w: cannot write collection %q", ErrInvalidPath, path)
		}
		key := DocKey(coll, id)
		w, ok := byKey[key]
		if !ok {
			w = &DocWrite{Collection: coll, ID: id}
			byKey[key] = w
		}
		w.Ops = append(w.Ops, Op{Sub: strings.Trim(sub, "/"), Value: v})
	}

	writes := make([]DocWrite, 0, len(byKey))
	for _, w := range byKey {
		sort.Slice(w.Ops, func(i, j int) bool {
			di, dj := depth(w.Ops[i].Sub), depth(w.Ops[j].Sub)
			if di != dj {
				return di < dj
			}
			return w.Ops[i].Sub < w.Ops[j].Sub
		})
		writes = append(writes, *w)
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Key() < writes[j].Key() })
	return writes, nil
}

func depth(sub string) int {
	if sub == "" {
		return 0
	}
	return strings.Count(sub, "/") + 1
}
