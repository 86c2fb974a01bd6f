package sheets_test

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// fakeSheets is a tiny in-memory stand-in for the Sheets v4 values API.
type fakeSheets struct {
	mu   sync.Mutex
	tabs map[string][][]any
	ids  map[int64]string
}

func newFakeSheets(tabs ...string) *fakeSheets {
	f := &fakeSheets{tabs: map[string][][]any{}, ids: map[int64]string{}}
	for i, t := range tabs {
		f.tabs[t] = nil
		f.ids[int64(i+100)] = t
	}
	return f
}

func (f *fakeSheets) rows(tab string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.tabs[tab]...)
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				InsertDimension struct {
					Range struct {
						SheetID int64 `json:"sheetId"`
					} `json:"range"`
				} `json:"insertDimension"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			tab := f.ids[rq.InsertDimension.Range.SheetID]
			f.tabs[tab] = append([][]any{{}}, f.tabs[tab]...)
		}
		writeJSON(w, map[string]any{})

	case strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		verb := ""
		for _, v := range []string{":append", ":clear"} {
			if strings.HasSuffix(rng, v) {
				verb, rng = v[1:], strings.TrimSuffix(rng, v)
			}
		}
		tab, a1 := parseRange(rng)
		rows, ok := f.tabs[tab]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range: ` + rng + `"}}`))
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		switch {
		case r.Method == http.MethodGet && a1 == "1:1":
			if len(rows) == 0 {
				writeJSON(w, map[string]any{"range": rng})
				return
			}
			writeJSON(w, map[string]any{"range": rng, "values": rows[:1]})
		case r.Method == http.MethodGet:
			writeJSON(w, map[string]any{"range": rng, "values": rows})
		case verb == "append":
			f.tabs[tab] = append(rows, body.Values...)
			writeJSON(w, map[string]any{})
		case verb == "clear":
			f.tabs[tab] = nil
			writeJSON(w, map[string]any{})
		case r.Method == http.MethodPut:
			if len(rows) == 0 {
				rows = [][]any{{}}
			}
			rows[0] = body.Values[0]
			f.tabs[tab] = rows
			writeJSON(w, map[string]any{})
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}

	default:
		type props struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		}
		ids := make([]int64, 0, len(f.ids))
		for id := range f.ids {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		var sheets []map[string]props
		for _, id := range ids {
			sheets = append(sheets, map[string]props{"properties": {SheetID: id, Title: f.ids[id]}})
		}
		writeJSON(w, map[string]any{"sheets": sheets})
	}
}

// parseRange splits "'tab'!A1" into the unquoted tab and the A1 suffix.
func parseRange(rng string) (string, string) {
	if !strings.HasPrefix(rng, "'") {
		tab, a1, _ := strings.Cut(rng, "!")
		return tab, a1
	}
	i := 1
	for i < len(rng) {
		if rng[i] == '\'' {
			if i+1 < len(rng) && rng[i+1] == '\'' {
				i += 2
				continue
			}
			break
		}
		i++
	}
	tab := strings.ReplaceAll(rng[1:i], "''", "'")
	rest := ""
	if i+1 < len(rng) {
		rest = strings.TrimPrefix(rng[i+1:], "!")
	}
	return tab, rest
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
