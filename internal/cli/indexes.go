package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dbstore/engine"
	"github.com/roach88/dbstore/store"
)

// IndexesOptions holds flags for the indexes command.
type IndexesOptions struct {
	*RootOptions
	Unique bool
}

// NewIndexesCommand creates the indexes command.
func NewIndexesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "indexes <collection> <field>...",
		Short: "Ensure a (compound) index exists",
		Long: `Ensure an index over the given fields exists. Existing indexes are
left untouched. With --unique, later writes of a duplicate key fail.`,
		Example:       `  dbstore indexes accounts email --unique`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				name, fields := args[0], args[1:]
				db, err := s.Engine().Database(ctx, s.DB(rootOpts.Database).Name())
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				idx := engine.Index{Fields: fields, Unique: opts.Unique}
				if _, err := db.Collection(ctx, nil, name, engine.CollectionSpec{Indexes: []engine.Index{idx}}); err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}

				if f.Format == "json" {
					return f.Success(map[string]any{"collection": name, "fields": fields, "unique": opts.Unique})
				}
				kind := "index"
				if opts.Unique {
					kind = "unique index"
				}
				fmt.Fprintf(f.Writer, "%s on %s(%s) ensured\n", kind, name, strings.Join(fields, ", "))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Unique, "unique", false, "reject duplicate keys")
	return cmd
}
