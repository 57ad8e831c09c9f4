package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"

	"hearthchat/repositories"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Par défaut on scanne "msg:" pour éviter de percuter les références msgref:
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "ID", "Room", "Sender", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// Les références et séquences n'ont pas de payload lisible
			if strings.HasPrefix(rawKey, "msgref:") || strings.HasPrefix(rawKey, "seq:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(renderRow(rawKey, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func renderRow(rawKey string, v []byte) []string {
	switch strings.SplitN(rawKey, ":", 2)[0] {
	case "msg":
		var record repositories.StoredMessage
		if err := json.Unmarshal(v, &record); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
			break
		}
		detail := fmt.Sprintf("ciphertext=%dB iv=%dB", len(record.Ciphertext), len(record.IV))
		if record.IsEdited {
			detail += " " + color.Yellow.Sprint("edited")
		}
		return []string{
			rawKey,
			color.Green.Sprint("MESSAGE"),
			record.CreatedAt.Format("15:04:05"),
			fmt.Sprint(record.ID),
			fmt.Sprint(record.Room),
			fmt.Sprint(record.Sender),
			detail,
		}
	case "room":
		var record struct {
			ID        int64     `json:"id"`
			Family    int64     `json:"family"`
			Name      string    `json:"name"`
			Members   []int64   `json:"members"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(v, &record); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
			break
		}
		return []string{
			rawKey,
			color.Cyan.Sprint("ROOM"),
			record.CreatedAt.Format("15:04:05"),
			fmt.Sprint(record.ID),
			fmt.Sprint(record.Family),
			"-",
			fmt.Sprintf("name=%q members=%d", record.Name, len(record.Members)),
		}
	case "react":
		var record struct {
			Message   int64     `json:"message"`
			Member    int64     `json:"member"`
			Emoji     string    `json:"emoji"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(v, &record); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
			break
		}
		return []string{
			rawKey,
			color.Magenta.Sprint("REACTION"),
			record.CreatedAt.Format("15:04:05"),
			fmt.Sprint(record.Message),
			"-",
			fmt.Sprint(record.Member),
			record.Emoji,
		}
	}
	return []string{rawKey, "RAW", "--:--:--", "-", "-", "-", fmt.Sprintf("size=%d", len(v))}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Si corruption détectée, essaie un open en write pour truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
