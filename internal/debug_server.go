package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

var (
	resumeChan  = make(chan struct{}, 1)
	currentPort int
)

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Room      string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// Inspect starts the debug server, runs fn, then pauses until /resume
// is hit. Meant for manual store inspection during scenario runs.
func Inspect(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider, prefix string, fn func()) {
	StartDebugServer(db, port, endpoint, mapper, statsProvider)

	if fn != nil {
		fn()
	}

	Wait(prefix)
}

func StartDebugServer(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	currentPort = port
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = MessageMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}

		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	mux.HandleFunc("/resume", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-resumeChan:
		default:
		}
		resumeChan <- struct{}{}
		fmt.Fprint(w, "RESUMED")
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

func Wait(prefix string) {
	url := fmt.Sprintf("http://localhost:%d/inspect?prefix=%s", currentPort, prefix)
	fmt.Printf("\n--- PAUSED ---\n\n%s\n\n--------------\n", url)
	<-resumeChan
}

// MessageMapper renders the store's keyspaces:
//
//	msg:{room}:{ts_nano}:{id}   message record
//	msgref:{id}                 id to primary key reference
//	room:{id}                   room record
//	react:{msg}:{member}:{emoji} reaction record
func MessageMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Room:      "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	switch parts[0] {
	case "msg":
		if len(parts) != 4 {
			return row
		}
		row.Type = "MESSAGE"
		row.Room = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).Format("15:04:05")
		}
		row.EntityID = strings.TrimLeft(parts[3], "0")
		var record struct {
			Sender   int64 `json:"sender"`
			IsEdited bool  `json:"is_edited"`
		}
		if err := json.Unmarshal(val, &record); err == nil {
			row.Detail = fmt.Sprintf("sender=%d edited=%t size=%d", record.Sender, record.IsEdited, len(val))
		}
	case "msgref":
		row.Type = "REF"
		row.EntityID = strings.TrimLeft(parts[1], "0")
		row.Detail = "-> " + string(val)
	case "room":
		row.Type = "ROOM"
		row.EntityID = strings.TrimLeft(parts[1], "0")
		var record struct {
			Family  int64   `json:"family"`
			Name    string  `json:"name"`
			Members []int64 `json:"members"`
		}
		if err := json.Unmarshal(val, &record); err == nil {
			row.Detail = fmt.Sprintf("family=%d name=%q members=%d", record.Family, record.Name, len(record.Members))
		}
	case "react":
		if len(parts) != 4 {
			return row
		}
		row.Type = "REACTION"
		row.EntityID = strings.TrimLeft(parts[1], "0")
		row.Detail = fmt.Sprintf("member=%s emoji=%s", strings.TrimLeft(parts[2], "0"), parts[3])
	}
	return row
}
