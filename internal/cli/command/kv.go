package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/corslight-go/internal/client"
	"github.com/yndnr/corslight-go/internal/core/domain"
)

// RecordView is the printed form of a fetched record.
type RecordView struct {
	Key     string          `json:"key"`
	Found   bool            `json:"found"`
	Value   json.RawMessage `json:"value"`
	Expires string          `json:"expires"`
	Session string          `json:"session,omitempty" table:"wide"`
}

// WriteView is the printed form of a store or remove result.
type WriteView struct {
	Key    string `json:"key"`
	Action string `json:"action"`
	TTL    string `json:"ttl,omitempty"`
}

// StoreCommand returns the store command.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "store",
		Aliases:   []string{"set"},
		Usage:     "Store a value under a key",
		ArgsUsage: "KEY VALUE",
		Description: "VALUE is stored as JSON when it parses as JSON and as a JSON string " +
			"otherwise. Use --string to always store a string.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "ttl",
				Usage: "Expiry: never, session, or a duration such as 90s or 12h",
				Value: "never",
			},
			&cli.BoolFlag{
				Name:  "string",
				Usage: "Store VALUE as a JSON string even if it parses as JSON",
			},
		},
		Action: storeAction,
	}
}

// FetchCommand returns the fetch command.
func FetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Aliases:   []string{"get"},
		Usage:     "Fetch the record stored under a key",
		ArgsUsage: "KEY",
		Action:    fetchAction,
	}
}

// RemoveCommand returns the remove command.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm", "del"},
		Usage:     "Remove a key",
		ArgsUsage: "KEY",
		Action:    removeAction,
	}
}

func storeAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("store needs KEY and VALUE")
	}
	key, arg := c.Args().Get(0), c.Args().Get(1)

	ttl, err := ParseTTL(c.String("ttl"))
	if err != nil {
		return err
	}
	value := ParseValue(arg, c.Bool("string"))

	return withClient(c, func(ctx context.Context, cl *client.Client) error {
		if _, err := cl.Store(key, value, ttl).Wait(ctx); err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
		return render(c, WriteView{Key: key, Action: "stored", TTL: ttl.String()})
	})
}

func fetchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("fetch needs KEY")
	}
	key := c.Args().First()

	return withClient(c, func(ctx context.Context, cl *client.Client) error {
		rec, err := cl.FetchRecord(ctx, key)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", key, err)
		}
		return render(c, NewRecordView(key, rec))
	})
}

func removeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("remove needs KEY")
	}
	key := c.Args().First()

	return withClient(c, func(ctx context.Context, cl *client.Client) error {
		if _, err := cl.Remove(key).Wait(ctx); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		return render(c, WriteView{Key: key, Action: "removed"})
	})
}

// withClient runs fn with a fresh client and the request timeout applied.
func withClient(c *cli.Context, fn func(ctx context.Context, cl *client.Client) error) error {
	cl, err := NewClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(c.Context, ParseGlobalFlags(c).Timeout)
	defer cancel()
	return fn(ctx, cl)
}

// NewRecordView converts a fetched record. A nil record means the key is
// not stored.
func NewRecordView(key string, rec *domain.Record) RecordView {
	if rec == nil {
		return RecordView{Key: key, Value: json.RawMessage("null"), Expires: "-"}
	}

	view := RecordView{Key: key, Found: true, Value: rec.Value}
	switch rec.Expiry.Kind {
	case domain.ExpiryAt:
		view.Expires = time.UnixMilli(rec.Expiry.At).UTC().Format(time.RFC3339)
	case domain.ExpirySession:
		view.Expires = "session"
		view.Session = rec.Expiry.Session
	default:
		view.Expires = "never"
	}
	return view
}

// ParseTTL reads a --ttl value.
func ParseTTL(s string) (domain.TTL, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never", "none":
		return domain.NoTTL(), nil
	case "session":
		return domain.SessionTTL(), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return domain.TTL{}, fmt.Errorf("invalid ttl %q: want never, session or a duration", s)
	}
	if d < 0 {
		return domain.TTL{}, fmt.Errorf("invalid ttl %q: must not be negative", s)
	}
	return domain.RelativeTTL(d), nil
}

// ParseValue returns arg as raw JSON when it is valid JSON, and as a string
// otherwise or when forceString is set.
func ParseValue(arg string, forceString bool) any {
	if !forceString && json.Valid([]byte(arg)) {
		return json.RawMessage(arg)
	}
	return arg
}
