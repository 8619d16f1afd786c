package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dbstore/engine"
	"github.com/roach88/dbstore/store"
)

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Print one document",
		Example: `  dbstore get users 0192b7c0-8a4e-7b7c-9f0e-3a1d2c4b5e6f
  dbstore --format json --db reports get daily 2024-06-01`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				coll, err := collection(ctx, s, opts, f, args[0])
				if err != nil {
					return err
				}
				doc, err := coll.Get(ctx, nil, args[1])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				if doc == nil {
					return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Errorf("%s/%s not found", args[0], args[1]))
				}
				return f.Success(doc)
			})
		},
	}
}

// NewPutCommand creates the put command.
func NewPutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <collection> <json|->",
		Short: "Insert or replace a document",
		Long: `Insert or replace a document given as a JSON object.

The id is taken from the "_id" key; a new UUIDv7 is generated when it is
missing. An existing document with the same id is replaced whole. Pass "-"
to read the document from stdin.`,
		Example:       `  dbstore put users '{"_id":"u1","name":"Ann","age":31}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				data := []byte(args[1])
				if args[1] == "-" {
					b, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return f.Fail(ExitCommandError, ErrCodeWriteFailed, err)
					}
					data = b
				}

				id, doc, err := prepareDocument(data)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInvalidArg, err)
				}

				coll, err := collection(ctx, s, opts, f, args[0])
				if err != nil {
					return err
				}
				old, err := coll.Get(ctx, nil, id)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				action := "replaced"
				if old == nil {
					action = "inserted"
					err = coll.Insert(ctx, nil, id, doc)
				} else {
					err = coll.Replace(ctx, nil, id, doc)
				}
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				f.VerboseLog("%s %s/%s", action, args[0], id)

				saved, err := coll.Get(ctx, nil, id)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				return f.Success(saved)
			})
		},
	}
}

// prepareDocument validates data as a JSON object and resolves its id.
func prepareDocument(data []byte) (string, engine.Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	if fields == nil {
		return "", nil, errors.New("document is not a JSON object")
	}

	var id string
	if raw, ok := fields[engine.IDField]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", nil, fmt.Errorf("%s must be a string", engine.IDField)
		}
	}
	if strings.TrimSpace(id) == "" {
		id = store.UUIDv7Generator{}.Generate()
	}
	return id, engine.Document(data), nil
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <collection> <id>",
		Short:         "Delete one document",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				coll, err := collection(ctx, s, opts, f, args[0])
				if err != nil {
					return err
				}
				removed, err := coll.Delete(ctx, nil, args[1])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				if !removed {
					return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Errorf("%s/%s not found", args[0], args[1]))
				}

				if f.Format == "json" {
					return f.Success(map[string]any{"collection": args[0], "id": args[1], "deleted": true})
				}
				fmt.Fprintf(f.Writer, "deleted %s/%s\n", args[0], args[1])
				return nil
			})
		},
	}
}
