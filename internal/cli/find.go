package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/store"
)

const filterHelp = `Filters are "field<op>value" expressions and are ANDed together.
Operators: = != < <= > >= ~ (case-insensitive pattern) ? (field exists).
Values are read as YAML scalars: 5 is a number, true a bool, "5" a string,
and a list such as [a,b] turns = into IN and != into NIN.`

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Sort  []string
	Skip  int
	Limit int
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <collection> [filter...]",
		Short: "List documents matching filters",
		Long:  "List documents matching filters.\n\n" + filterHelp,
		Example: `  dbstore find users 'age>=18' 'name~ann' --sort -age --limit 10
  dbstore find users 'role=[admin,owner]' email?`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				q, err := opts.query(args[1:])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInvalidArg, err)
				}
				coll, err := collection(ctx, s, rootOpts, f, args[0])
				if err != nil {
					return err
				}
				docs, err := coll.Find(ctx, nil, q)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				f.VerboseLog("%d document(s)", len(docs))
				return f.Success(docs)
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.Sort, "sort", nil, "sort keys, -field for descending")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "documents to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum documents (0 = unbounded)")

	return cmd
}

func (o *FindOptions) query(filters []string) (*query.Query, error) {
	filter, err := ParseFilters(filters)
	if err != nil {
		return nil, err
	}
	order, err := ParseSort(o.Sort)
	if err != nil {
		return nil, err
	}
	q := query.New(filter).Page(o.Skip, o.Limit)
	q.OrderBy = order
	return q, nil
}

// NewCountCommand creates the count command.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "count <collection> [filter...]",
		Short:         "Count documents matching filters",
		Long:          "Count documents matching filters.\n\n" + filterHelp,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				filter, err := ParseFilters(args[1:])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInvalidArg, err)
				}
				coll, err := collection(ctx, s, opts, f, args[0])
				if err != nil {
					return err
				}
				n, err := coll.Count(ctx, nil, filter)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				return f.Success(n)
			})
		},
	}
}
